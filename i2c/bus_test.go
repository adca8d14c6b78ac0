package i2c

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

// fakePeriphBus records Tx transfers and serves a canned read payload.
type fakePeriphBus struct {
	writes [][]byte
	reads  []int
	data   []byte
	err    error
}

func (f *fakePeriphBus) String() string { return "fake" }

func (f *fakePeriphBus) Tx(addr uint16, w, r []byte) error {
	f.writes = append(f.writes, append([]byte(nil), w...))
	f.reads = append(f.reads, len(r))
	if f.err != nil {
		return f.err
	}
	copy(r, f.data)
	return nil
}

func (f *fakePeriphBus) SetSpeed(fr physic.Frequency) error { return nil }
func (f *fakePeriphBus) Close() error                       { return nil }

func TestWireBus_WriteTransaction(t *testing.T) {
	fake := &fakePeriphBus{}
	bus := &WireBus{bus: fake}

	bus.BeginTx(0x48)
	bus.WriteByte(0x01)
	bus.WriteByte(0x85)
	bus.WriteByte(0x83)
	status := bus.EndTx(true)

	assert.EqualValues(t, 0, status)
	require.Len(t, fake.writes, 1)
	assert.Equal(t, []byte{0x01, 0x85, 0x83}, fake.writes[0])
}

func TestWireBus_RepeatedStartCombinesWriteAndRead(t *testing.T) {
	fake := &fakePeriphBus{data: []byte{0x12, 0x34}}
	bus := &WireBus{bus: fake}

	bus.BeginTx(0x48)
	bus.WriteByte(0x00)
	bus.EndTx(false)
	bus.RequestFrom(0x48, 2)

	// one combined transfer, not a separate write and read
	require.Len(t, fake.writes, 1)
	assert.Equal(t, []byte{0x00}, fake.writes[0])
	assert.Equal(t, []int{2}, fake.reads)

	require.Equal(t, 2, bus.Available())
	got := binary.BigEndian.Uint16([]byte{bus.ReadByte(), bus.ReadByte()})
	assert.Equal(t, uint16(0x1234), got)
	assert.Zero(t, bus.Available())
}

func TestWireBus_TransferErrorLeavesNothingAvailable(t *testing.T) {
	fake := &fakePeriphBus{err: assert.AnError}
	bus := &WireBus{bus: fake}

	bus.BeginTx(0x48)
	bus.WriteByte(0x00)
	assert.NotZero(t, bus.EndTx(true))

	bus.RequestFrom(0x48, 2)
	assert.Zero(t, bus.Available())
}

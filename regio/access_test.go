package regio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackBus is a Bus backed by a small register file. Written frames are
// committed on EndTx(true); EndTx(false) records the register pointer for
// the read that follows, mimicking a device that answers its own writes.
type loopbackBus struct {
	regs    map[byte][]byte
	addr    byte
	frame   []byte
	pointer byte

	status byte // returned by EndTx(true)
	mute   bool // when set, RequestFrom serves nothing

	rx      []byte
	written [][]byte
	stops   []bool
}

func newLoopbackBus() *loopbackBus {
	return &loopbackBus{regs: map[byte][]byte{}}
}

func (b *loopbackBus) BeginTx(addr byte) {
	b.addr = addr
	b.frame = b.frame[:0]
}

func (b *loopbackBus) WriteByte(v byte) {
	b.frame = append(b.frame, v)
}

func (b *loopbackBus) EndTx(stop bool) byte {
	b.stops = append(b.stops, stop)
	frame := append([]byte(nil), b.frame...)
	b.written = append(b.written, frame)
	if len(frame) > 0 {
		b.pointer = frame[0]
	}
	if !stop {
		return 0
	}
	if b.status != 0 {
		return b.status
	}
	if len(frame) > 1 {
		b.regs[frame[0]] = frame[1:]
	}
	return 0
}

func (b *loopbackBus) RequestFrom(addr byte, count int) {
	if b.mute {
		b.rx = nil
		return
	}
	data := b.regs[b.pointer]
	if len(data) > count {
		data = data[:count]
	}
	b.rx = append([]byte(nil), data...)
}

func (b *loopbackBus) Available() int { return len(b.rx) }

func (b *loopbackBus) ReadByte() byte {
	v := b.rx[0]
	b.rx = b.rx[1:]
	return v
}

// steppingClock advances by step every time it is observed, so polling
// loops walk toward their deadline without waiting on real time.
type steppingClock struct {
	now   time.Time
	step  time.Duration
	slept []time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *steppingClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

const testAddr = 0x48

func TestWriteRegister_BigEndian(t *testing.T) {
	t.Run("two byte word", func(t *testing.T) {
		bus := newLoopbackBus()
		access := New[uint8, uint16](bus, testAddr)
		require.True(t, access.WriteRegister(0x01, 0x1234))
		require.Len(t, bus.written, 1)
		assert.Equal(t, []byte{0x01, 0x12, 0x34}, bus.written[0])
	})
	t.Run("four byte word", func(t *testing.T) {
		bus := newLoopbackBus()
		access := New[uint8, uint32](bus, testAddr)
		require.True(t, access.WriteRegister(0x02, 0x12345678))
		require.Len(t, bus.written, 1)
		assert.Equal(t, []byte{0x02, 0x12, 0x34, 0x56, 0x78}, bus.written[0])
	})
	t.Run("single byte word", func(t *testing.T) {
		bus := newLoopbackBus()
		access := New[uint8, uint8](bus, testAddr)
		require.True(t, access.WriteRegister(0x03, 0xAB))
		require.Len(t, bus.written, 1)
		assert.Equal(t, []byte{0x03, 0xAB}, bus.written[0])
	})
}

func TestWriteRead_RoundTrip(t *testing.T) {
	t.Run("uint8", func(t *testing.T) {
		bus := newLoopbackBus()
		access := New[uint8, uint8](bus, testAddr)
		require.True(t, access.WriteRegister(0x00, 0x5A))
		assert.Equal(t, uint8(0x5A), access.ReadRegister(0x00))
		assert.False(t, access.TimedOut())
	})
	t.Run("uint16", func(t *testing.T) {
		bus := newLoopbackBus()
		access := New[uint8, uint16](bus, testAddr)
		require.True(t, access.WriteRegister(0x01, 0xBEEF))
		assert.Equal(t, uint16(0xBEEF), access.ReadRegister(0x01))
	})
	t.Run("uint32", func(t *testing.T) {
		bus := newLoopbackBus()
		access := New[uint8, uint32](bus, testAddr)
		require.True(t, access.WriteRegister(0x02, 0xCAFEBABE))
		assert.Equal(t, uint32(0xCAFEBABE), access.ReadRegister(0x02))
	})
}

func TestReadRegister_RepeatedStart(t *testing.T) {
	bus := newLoopbackBus()
	access := New[uint8, uint16](bus, testAddr)
	bus.regs[0x00] = []byte{0x01, 0x02}
	access.ReadRegister(0x00)
	// the pointer write must leave the transaction open for the read
	require.Len(t, bus.stops, 1)
	assert.False(t, bus.stops[0])
	assert.Equal(t, []byte{0x00}, bus.written[0])
}

func TestReadRegisters_Timeout(t *testing.T) {
	bus := newLoopbackBus()
	bus.mute = true
	clock := &steppingClock{step: time.Millisecond}
	access := New[uint8, uint16](bus, testAddr,
		WithClock(clock),
		WithTimeout(10*time.Millisecond),
	)
	timeouts := 0
	access.AttachTimeoutHandler(func() { timeouts++ })

	dst := []uint16{0xFFFF, 0xFFFF, 0xFFFF}
	ok := access.ReadRegisters(0x00, dst)

	assert.False(t, ok)
	assert.True(t, access.TimedOut())
	assert.Equal(t, []uint16{0, 0, 0}, dst, "timed-out buffer must stay zeroed")
	assert.Equal(t, 1, timeouts, "timeout handler must fire exactly once")
}

func TestReadRegister_TimeoutReturnsZeroAndResets(t *testing.T) {
	bus := newLoopbackBus()
	bus.mute = true
	clock := &steppingClock{step: time.Millisecond}
	access := New[uint8, uint16](bus, testAddr,
		WithClock(clock),
		WithTimeout(5*time.Millisecond),
	)
	timeouts := 0
	access.AttachTimeoutHandler(func() { timeouts++ })

	assert.Equal(t, uint16(0), access.ReadRegister(0x01))
	assert.True(t, access.TimedOut())
	assert.Equal(t, 1, timeouts)

	// flag is latched only until the next read attempt
	bus.mute = false
	bus.regs[0x01] = []byte{0x00, 0x2A}
	assert.Equal(t, uint16(0x2A), access.ReadRegister(0x01))
	assert.False(t, access.TimedOut())
	assert.Equal(t, 1, timeouts)
}

func TestWriteRegister_NACK(t *testing.T) {
	bus := newLoopbackBus()
	bus.status = 3
	access := New[uint8, uint16](bus, testAddr)
	var statuses []byte
	timeouts := 0
	access.AttachErrorHandler(func(status byte) { statuses = append(statuses, status) })
	access.AttachTimeoutHandler(func() { timeouts++ })

	assert.False(t, access.WriteRegister(0x01, 0x1234))
	assert.Equal(t, []byte{3}, statuses, "error handler must fire exactly once with the bus status")
	assert.Zero(t, timeouts, "a NACK must not be reported as a timeout")
}

func TestWriteRegister_NACKWithoutHandler(t *testing.T) {
	bus := newLoopbackBus()
	bus.status = 2
	access := New[uint8, uint16](bus, testAddr)
	assert.False(t, access.WriteRegister(0x01, 0x1234))
}

func TestWriteRegisters_MultiWordSingleTransaction(t *testing.T) {
	bus := newLoopbackBus()
	access := New[uint8, uint16](bus, testAddr)
	require.True(t, access.WriteRegisters(0x02, []uint16{0x8000, 0x7FFF}))
	require.Len(t, bus.written, 1)
	assert.Equal(t, []byte{0x02, 0x80, 0x00, 0x7F, 0xFF}, bus.written[0])
}

func TestReadRegisters_Success(t *testing.T) {
	bus := newLoopbackBus()
	access := New[uint8, uint16](bus, testAddr)
	bus.regs[0x02] = []byte{0x80, 0x00, 0x7F, 0xFF}
	dst := make([]uint16, 2)
	require.True(t, access.ReadRegisters(0x02, dst))
	assert.Equal(t, []uint16{0x8000, 0x7FFF}, dst)
}

func TestSetRegisterBit_ToggleRoundTrip(t *testing.T) {
	bus := newLoopbackBus()
	access := New[uint8, uint16](bus, testAddr)
	require.True(t, access.WriteRegister(0x01, 0x8583))

	require.True(t, access.SetRegisterBit(0x01, 3, true))
	assert.Equal(t, uint16(0x858B), access.ReadRegister(0x01))

	require.True(t, access.SetRegisterBit(0x01, 3, false))
	assert.Equal(t, uint16(0x8583), access.ReadRegister(0x01))
}

func TestSetRegisterBit_AbortsOnReadTimeout(t *testing.T) {
	bus := newLoopbackBus()
	bus.mute = true
	clock := &steppingClock{step: time.Millisecond}
	access := New[uint8, uint16](bus, testAddr,
		WithClock(clock),
		WithTimeout(5*time.Millisecond),
	)
	writes := len(bus.written)
	assert.False(t, access.SetRegisterBit(0x01, 3, true))
	assert.True(t, access.TimedOut())
	// only the pointer write went out; no corrupted value was written back
	assert.Len(t, bus.written, writes+1)
}

func TestSetTimeout_AdjustsBudget(t *testing.T) {
	bus := newLoopbackBus()
	bus.mute = true
	clock := &steppingClock{step: time.Millisecond}
	access := New[uint8, uint16](bus, testAddr, WithClock(clock))
	require.Equal(t, DefaultTimeout, access.Timeout())
	access.SetTimeout(2 * time.Millisecond)
	assert.Equal(t, uint16(0), access.ReadRegister(0x00))
	assert.True(t, access.TimedOut())
}

// Package i2c adapts a kernel I2C device, reached through periph.io, to the
// transaction-oriented adc.Bus contract.
package i2c

import (
	"fmt"

	"github.com/sparky650/adc"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var _ adc.Bus = &WireBus{}

// WireBus buffers the byte-level transaction primitives and maps them onto
// periph's message-oriented Tx. A transaction ended without a stop condition
// is held back and combined with the following RequestFrom into one
// write-then-read transfer, which periph issues with a repeated start.
type WireBus struct {
	bus i2c.BusCloser

	txAddr  byte
	tx      []byte
	pending []byte

	rx []byte
}

// NewWireBus opens the named kernel bus (for example "/dev/i2c-1" or "1").
func NewWireBus(dev string) (*WireBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return &WireBus{bus: bus}, nil
}

func (b *WireBus) BeginTx(addr byte) {
	b.txAddr = addr
	b.tx = b.tx[:0]
	b.pending = nil
}

func (b *WireBus) WriteByte(v byte) {
	b.tx = append(b.tx, v)
}

func (b *WireBus) EndTx(stop bool) byte {
	if !stop {
		b.pending = append([]byte(nil), b.tx...)
		return adc.StatusOK
	}
	if err := b.bus.Tx(uint16(b.txAddr), b.tx, nil); err != nil {
		return adc.StatusDataNACK
	}
	return adc.StatusOK
}

func (b *WireBus) RequestFrom(addr byte, count int) {
	rx := make([]byte, count)
	w := b.pending
	b.pending = nil
	if err := b.bus.Tx(uint16(addr), w, rx); err != nil {
		// nothing becomes available; the register engine reports a timeout
		b.rx = nil
		return
	}
	b.rx = rx
}

func (b *WireBus) Available() int {
	return len(b.rx)
}

func (b *WireBus) ReadByte() byte {
	v := b.rx[0]
	b.rx = b.rx[1:]
	return v
}

func (b *WireBus) Close() error {
	return b.bus.Close()
}

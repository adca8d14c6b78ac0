// Package adc holds the transport contract shared by the register access
// engine and the bus adapters. A Bus models the classic two-wire master
// primitives: an outgoing transaction is opened, filled byte by byte and
// closed (optionally without a stop condition so a read can follow), and
// incoming bytes are requested and then drained as they become available.
package adc

import "fmt"

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// Transaction status codes reported by EndTx. Zero means every byte was
// acknowledged; the non-zero values follow the usual two-wire convention.
const (
	StatusOK byte = iota
	StatusDataTooLong
	StatusAddrNACK
	StatusDataNACK
	StatusError
	StatusBusy
)

type Bus interface {
	// BeginTx opens an outgoing transaction addressed to the 7-bit device
	// address. Any previously buffered outgoing bytes are discarded.
	BeginTx(addr byte)
	// WriteByte appends one byte to the open transaction.
	WriteByte(b byte)
	// EndTx closes the transaction and performs the transfer. When stop is
	// false the bus keeps the line claimed so the next RequestFrom can issue
	// a repeated start. Returns StatusOK when the device acknowledged.
	EndTx(stop bool) byte
	// RequestFrom initiates a read of count bytes from the device.
	RequestFrom(addr byte, count int)
	// Available reports how many requested bytes can currently be read.
	Available() int
	// ReadByte pops the next available byte. Only valid while Available
	// reports at least one byte.
	ReadByte() byte
}

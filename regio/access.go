// Package regio implements typed, multi-byte, timeout-guarded register access
// over a two-wire bus. It is device agnostic: a driver instantiates Access
// with its own register enumeration and register word width and layers its
// register semantics on top.
package regio

import (
	"encoding/binary"
	"time"

	"github.com/sparky650/adc"
)

// DefaultTimeout bounds how long a read may poll for data availability
// before it is declared failed.
const DefaultTimeout = time.Second

// Register is satisfied by a device's register address enumeration. The
// engine never validates addresses; passing one outside the enumeration
// valid for the bound device is a caller error.
type Register interface {
	~uint8
}

// Word is the set of supported register word widths.
type Word interface {
	~uint8 | ~uint16 | ~uint32
}

type Config struct {
	Clock   adc.Clock
	Timeout time.Duration
}

type Option func(*Config)

func WithClock(clock adc.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// Access performs register reads and writes against one device on a shared
// bus. It owns no recovery policy: a failed operation reports through its
// return value and, when registered, through a handler, and the next
// operation starts clean. Access is not safe for concurrent use; the bus is
// assumed to have a single owner.
type Access[R Register, W Word] struct {
	bus      adc.Bus
	clock    adc.Clock
	addr     byte
	wordSize int
	timeout  time.Duration
	timedOut bool

	onTimeout func()
	onError   func(status byte)
}

// New binds a register accessor to the device at the given 7-bit address.
func New[R Register, W Word](bus adc.Bus, addr byte, opts ...Option) *Access[R, W] {
	config := Config{
		Clock:   adc.SystemClock,
		Timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&config)
	}
	var zero W
	return &Access[R, W]{
		bus:      bus,
		clock:    config.Clock,
		addr:     addr,
		wordSize: binary.Size(zero),
		timeout:  config.Timeout,
	}
}

// AttachTimeoutHandler registers a function called whenever a read times
// out. At most one handler is kept; nil detaches.
func (a *Access[R, W]) AttachTimeoutHandler(handler func()) {
	a.onTimeout = handler
}

// AttachErrorHandler registers a function called with the bus status code
// whenever a write is not acknowledged. At most one handler is kept; nil
// detaches.
func (a *Access[R, W]) AttachErrorHandler(handler func(status byte)) {
	a.onError = handler
}

// SetTimeout adjusts the polling budget for subsequent reads.
func (a *Access[R, W]) SetTimeout(timeout time.Duration) {
	a.timeout = timeout
}

func (a *Access[R, W]) Timeout() time.Duration {
	return a.timeout
}

// TimedOut reports whether the most recent read operation timed out. The
// flag is reset at the start of every read, so it is only meaningful
// immediately after a read call.
func (a *Access[R, W]) TimedOut() bool {
	return a.timedOut
}

// WriteRegister writes a single register word.
func (a *Access[R, W]) WriteRegister(reg R, value W) bool {
	return a.WriteRegisters(reg, []W{value})
}

// WriteRegisters writes consecutive register words starting at reg in one
// bus transaction. Returns false on a negative acknowledgment, after
// notifying the error handler with the raw bus status.
func (a *Access[R, W]) WriteRegisters(reg R, values []W) bool {
	a.bus.BeginTx(a.addr)
	a.bus.WriteByte(byte(reg))
	for _, value := range values {
		a.putWord(value)
	}
	status := a.bus.EndTx(true)
	if status == adc.StatusOK {
		return true
	}
	if a.onError != nil {
		a.onError(status)
	}
	return false
}

// ReadRegister reads a single register word. On timeout it notifies the
// timeout handler, latches the timeout flag and returns the zero word.
func (a *Access[R, W]) ReadRegister(reg R) W {
	a.bus.BeginTx(a.addr)
	a.bus.WriteByte(byte(reg))
	a.bus.EndTx(false)
	a.bus.RequestFrom(a.addr, a.wordSize)

	if !a.waitAvailable(a.wordSize) {
		return 0
	}
	return a.takeWord()
}

// ReadRegisters reads consecutive register words starting at reg into dst.
// dst is zeroed before polling begins, so a timed-out call leaves it
// all-zero rather than partially stale. Returns false on timeout.
func (a *Access[R, W]) ReadRegisters(reg R, dst []W) bool {
	for i := range dst {
		dst[i] = 0
	}
	a.bus.BeginTx(a.addr)
	a.bus.WriteByte(byte(reg))
	a.bus.EndTx(false)
	a.bus.RequestFrom(a.addr, len(dst)*a.wordSize)

	if !a.waitAvailable(len(dst) * a.wordSize) {
		return false
	}
	for i := range dst {
		dst[i] = a.takeWord()
	}
	return true
}

// SetRegisterBit reads a register, sets or clears one bit and writes the
// result back. When the read times out the write is skipped so a zeroed
// word is never pushed to the device; the call then reports failure and
// leaves the timeout flag observable.
func (a *Access[R, W]) SetRegisterBit(reg R, bit uint, state bool) bool {
	value := a.ReadRegister(reg)
	if a.timedOut {
		return false
	}
	if state {
		value |= W(1) << bit
	} else {
		value &^= W(1) << bit
	}
	return a.WriteRegister(reg, value)
}

// waitAvailable polls the bus until count bytes can be read or the timeout
// budget elapses. The deadline is computed when polling begins.
func (a *Access[R, W]) waitAvailable(count int) bool {
	a.timedOut = false
	deadline := a.clock.Now().Add(a.timeout)
	for a.bus.Available() < count {
		if a.clock.Now().After(deadline) {
			a.timedOut = true
			if a.onTimeout != nil {
				a.onTimeout()
			}
			return false
		}
	}
	return true
}

// putWord serializes one register word most-significant byte first.
func (a *Access[R, W]) putWord(value W) {
	u := uint32(value)
	for shift := (a.wordSize - 1) * 8; shift >= 0; shift -= 8 {
		a.bus.WriteByte(byte(u >> shift))
	}
}

// takeWord reassembles one register word most-significant byte first.
func (a *Access[R, W]) takeWord() W {
	var u uint32
	for i := 0; i < a.wordSize; i++ {
		u = u<<8 | uint32(a.bus.ReadByte())
	}
	return W(u)
}

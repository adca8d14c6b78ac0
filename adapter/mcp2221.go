// Package adapter drives the Microchip MCP2221/MCP2221A USB-to-I2C bridge
// over raw HID reports and exposes it as an adc.Bus. Every command is one
// 64-byte request report followed, after a short wait, by one 64-byte
// response report.
package adapter

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karalabe/hid"

	"github.com/sparky650/adc"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// HID command codes from the MCP2221 datasheet.
const (
	cmdStatusSetParameters = 0x10
	cmdReadData            = 0x40
	cmdI2CWrite            = 0x90
	cmdI2CRead             = 0x91
	cmdI2CReadRepeatStart  = 0x93
	cmdI2CWriteNoStop      = 0x94
)

var ErrCommandFailed = errors.New("command failed")

var _ adc.Bus = &MCP2221{}

// MCP2221 is a single bridge chip. The zero value is not usable; construct
// with NewMCP2221. Not safe for concurrent use, matching the single-owner
// bus model of the drivers above it.
type MCP2221 struct {
	request      []byte
	response     []byte
	responseWait time.Duration

	txAddr   byte
	tx       []byte
	holdStop bool
	rx       []byte
}

type Status struct {
	I2CDataBufferCounter   int
	I2CSpeedDivider        int
	I2CTimeout             int
	CurrentAddress         string
	LastWriteRequestedSize uint16
	LastWriteSentSize      uint16
	ReadPending            int
}

func NewMCP2221() *MCP2221 {
	return &MCP2221{
		request:      make([]byte, 64),
		response:     make([]byte, 64),
		responseWait: 50 * time.Millisecond,
	}
}

func (d *MCP2221) BeginTx(addr byte) {
	d.txAddr = addr
	d.tx = d.tx[:0]
	d.holdStop = false
}

func (d *MCP2221) WriteByte(b byte) {
	d.tx = append(d.tx, b)
}

func (d *MCP2221) EndTx(stop bool) byte {
	cmd := byte(cmdI2CWrite)
	if !stop {
		cmd = cmdI2CWriteNoStop
		d.holdStop = true
	}
	err := d.i2cWrite(cmd, d.txAddr, d.tx)
	if errors.Is(err, adc.ErrBusBusy) {
		// try to free the engine for the next attempt
		_, _ = d.ReleaseBus()
		return adc.StatusBusy
	}
	if err != nil {
		slog.Debug("i2c write failed", "addr", d.txAddr, "error", err)
		return adc.StatusError
	}
	return adc.StatusOK
}

func (d *MCP2221) RequestFrom(addr byte, count int) {
	d.rx = nil
	cmd := byte(cmdI2CRead)
	if d.holdStop {
		cmd = cmdI2CReadRepeatStart
		d.holdStop = false
	}
	data, err := d.i2cRead(cmd, addr, count)
	if err != nil {
		// leave nothing available; the register engine reports a timeout
		slog.Debug("i2c read failed", "addr", addr, "count", count, "error", err)
		return
	}
	d.rx = data
}

func (d *MCP2221) Available() int {
	return len(d.rx)
}

func (d *MCP2221) ReadByte() byte {
	v := d.rx[0]
	d.rx = d.rx[1:]
	return v
}

func (d *MCP2221) i2cWrite(cmd, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	if len(buffer) > 0 {
		copy(d.request[4:], buffer)
	}
	err := d.send(true)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		slog.Debug("adapter busy")
		return adc.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) i2cRead(cmd, address byte, count int) ([]byte, error) {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(count))
	d.request[3] = address<<1 + 1
	err := d.send(true)
	if err != nil {
		return nil, fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		return nil, adc.ErrBusBusy
	}
	d.request[0] = cmdReadData
	resetBuffer(d.response)
	err = d.send(true)
	if err != nil {
		return nil, fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 {
		return nil, fmt.Errorf("reading slave data from the I2C engine: %w", ErrCommandFailed)
	}
	if d.response[3] == 127 || int(d.response[3]) != count {
		return nil, fmt.Errorf("invalid data size byte; expected %d, got %d", count, d.response[3])
	}
	data := make([]byte, count)
	copy(data, d.response[4:])
	return data, nil
}

func (d *MCP2221) Status() (*Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatusSetParameters
	err := d.send(true)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// ReleaseBus cancels the current transfer, freeing a wedged I2C engine.
func (d *MCP2221) ReleaseBus() (*Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatusSetParameters
	d.request[2] = 0x10
	err := d.send(true)
	if err != nil {
		return nil, fmt.Errorf("cancel transfer request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (d *MCP2221) send(response bool) error {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) > 1 {
		return fmt.Errorf("ambiguous device identification")
	}
	if len(devs) == 0 {
		return fmt.Errorf("MCP2221 device not found")
	}
	dev, err := devs[0].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() {
		_ = dev.Close()
	}()
	slog.Debug("sending message to adapter", "report", hex.Dump(d.request))
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short write: %d", n)
	}
	if !response {
		return nil
	}
	time.Sleep(d.responseWait)
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short read: %d", n)
	}
	slog.Debug("read message from adapter", "report", hex.Dump(d.response))
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := 0; i < len(buf)-1; i++ {
		buf[i] = 0x00
	}
}

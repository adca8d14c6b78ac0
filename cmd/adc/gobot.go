package main

import (
	"fmt"

	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/sparky650/adc"
)

// gobotBus exposes a gobot I2C connector as an adc.Bus. Gobot has no
// repeated-start primitive, so a transaction ended without a stop condition
// is flushed as a plain write; the chip's register pointer survives the
// stop, which is all the drivers above rely on.
type gobotBus struct {
	connector i2c.Connector
	busNum    int
	drivers   map[byte]*i2c.GenericDriver

	txAddr byte
	tx     []byte
	rx     []byte
}

func newGobotBus(busNum int) (*gobotBus, error) {
	npi := nanopi.NewNeoAdaptor()
	if err := npi.I2cBusAdaptor.Connect(); err != nil {
		return nil, fmt.Errorf("adaptor connect error: %w", err)
	}
	return &gobotBus{
		connector: npi,
		busNum:    busNum,
		drivers:   map[byte]*i2c.GenericDriver{},
	}, nil
}

func (b *gobotBus) driver(addr byte) (*i2c.GenericDriver, error) {
	if d, ok := b.drivers[addr]; ok {
		return d, nil
	}
	d := i2c.NewGenericDriver(b.connector, "ads1x15", int(addr), func(c i2c.Config) {
		c.SetBus(b.busNum)
	})
	if err := d.Start(); err != nil {
		return nil, fmt.Errorf("start error: %w", err)
	}
	b.drivers[addr] = d
	return d, nil
}

func (b *gobotBus) BeginTx(addr byte) {
	b.txAddr = addr
	b.tx = b.tx[:0]
}

func (b *gobotBus) WriteByte(v byte) {
	b.tx = append(b.tx, v)
}

func (b *gobotBus) EndTx(stop bool) byte {
	d, err := b.driver(b.txAddr)
	if err != nil {
		return adc.StatusError
	}
	if err := d.Write(append([]byte(nil), b.tx...)); err != nil {
		return adc.StatusDataNACK
	}
	return adc.StatusOK
}

func (b *gobotBus) RequestFrom(addr byte, count int) {
	b.rx = nil
	d, err := b.driver(addr)
	if err != nil {
		return
	}
	rx := make([]byte, count)
	if err := d.Read(rx); err != nil {
		return
	}
	b.rx = rx
}

func (b *gobotBus) Available() int {
	return len(b.rx)
}

func (b *gobotBus) ReadByte() byte {
	v := b.rx[0]
	b.rx = b.rx[1:]
	return v
}

// Package ads1x15 drives the Texas Instruments ADS1015 and ADS1115 I2C
// analog-to-digital converters. Both chips share one register map and differ
// only in resolution and conversion timing, so a single Device covers both,
// parameterized by a Variant.
//
// The on-chip configuration register is mirrored locally: setters mutate the
// mirror field by field and the whole word is pushed to the chip right
// before each one-shot conversion. The mirror starts at the chip's
// power-on-reset value, so a freshly created Device matches an unconfigured
// chip.
package ads1x15

import (
	"time"

	"github.com/sparky650/adc"
	"github.com/sparky650/adc/regio"
)

// DefaultAddress is the bus address with the ADDR pin tied to ground. Tying
// it to VDD, SDA or SCL selects 0x49, 0x4A or 0x4B.
const DefaultAddress = 0x48

type register uint8

const (
	regConversion register = iota
	regConfig
	regLoThresh
	regHiThresh
)

// porConfig is the documented power-on-reset value of the config register.
const porConfig uint16 = 0x8583

// configOS starts a one-shot conversion when written.
const configOS uint16 = 1 << 15

const (
	muxMask      uint16 = 0x7 << 12
	gainMask     uint16 = 0x7 << 9
	dataRateMask uint16 = 0x7 << 5
	compModeMask uint16 = 1 << 4
	compPolMask  uint16 = 1 << 3
	compLatMask  uint16 = 1 << 2
	compQueMask  uint16 = 0x3
)

// Mux selects the input pair routed to the converter. The differential
// selections compare two inputs; the single-ended ones compare one input
// against ground.
type Mux uint16

const (
	MuxDiff01 Mux = iota << 12
	MuxDiff03
	MuxDiff13
	MuxDiff23
	MuxSingle0
	MuxSingle1
	MuxSingle2
	MuxSingle3
)

// Gain selects the programmable gain amplifier range.
type Gain uint16

const (
	GainTwoThirds Gain = iota << 9 // ±6.144 V
	GainOne                        // ±4.096 V
	GainTwo                        // ±2.048 V
	GainFour                       // ±1.024 V
	GainEight                      // ±0.512 V
	GainSixteen                    // ±0.256 V
)

// FullScale returns the input voltage mapped to the positive full-scale
// code at this gain.
func (g Gain) FullScale() float64 {
	switch g {
	case GainTwoThirds:
		return 6.144
	case GainOne:
		return 4.096
	case GainTwo:
		return 2.048
	case GainFour:
		return 1.024
	case GainEight:
		return 0.512
	case GainSixteen:
		return 0.256
	}
	return 0
}

func (g Gain) String() string {
	switch g {
	case GainTwoThirds:
		return "2/3"
	case GainOne:
		return "1"
	case GainTwo:
		return "2"
	case GainFour:
		return "4"
	case GainEight:
		return "8"
	case GainSixteen:
		return "16"
	}
	return "unknown"
}

type ComparatorMode uint16

const (
	ComparatorTraditional ComparatorMode = 0
	ComparatorWindow      ComparatorMode = 1 << 4
)

type ComparatorPolarity uint16

const (
	ComparatorActiveLow  ComparatorPolarity = 0
	ComparatorActiveHigh ComparatorPolarity = 1 << 3
)

type ComparatorLatch uint16

const (
	ComparatorNonLatching ComparatorLatch = 0
	ComparatorLatching    ComparatorLatch = 1 << 2
)

// ComparatorQueue sets how many conversions past a threshold assert the
// ALERT/RDY pin; ComparatorDisabled puts the pin in high impedance.
type ComparatorQueue uint16

const (
	ComparatorAssertAfterOne ComparatorQueue = iota
	ComparatorAssertAfterTwo
	ComparatorAssertAfterFour
	ComparatorDisabled
)

// DataRate pairs the config register bits of a sample rate with the
// settling time a conversion at that rate needs. The sets below are chip
// specific; use the one matching the Variant the Device was built with.
type DataRate struct {
	bits  uint16
	delay time.Duration
}

// ADS1115 sample rates.
var (
	ADS1115DataRate8   = DataRate{0x0 << 5, 125400 * time.Microsecond}
	ADS1115DataRate16  = DataRate{0x1 << 5, 62900 * time.Microsecond}
	ADS1115DataRate32  = DataRate{0x2 << 5, 31650 * time.Microsecond}
	ADS1115DataRate64  = DataRate{0x3 << 5, 16025 * time.Microsecond}
	ADS1115DataRate128 = DataRate{0x4 << 5, 8213 * time.Microsecond}
	ADS1115DataRate250 = DataRate{0x5 << 5, 4400 * time.Microsecond}
	ADS1115DataRate475 = DataRate{0x6 << 5, 2505 * time.Microsecond}
	ADS1115DataRate860 = DataRate{0x7 << 5, 1563 * time.Microsecond}
)

// ADS1015 sample rates.
var (
	ADS1015DataRate128  = DataRate{0x0 << 5, 8213 * time.Microsecond}
	ADS1015DataRate250  = DataRate{0x1 << 5, 4400 * time.Microsecond}
	ADS1015DataRate490  = DataRate{0x2 << 5, 2441 * time.Microsecond}
	ADS1015DataRate920  = DataRate{0x3 << 5, 1487 * time.Microsecond}
	ADS1015DataRate1600 = DataRate{0x4 << 5, 1025 * time.Microsecond}
	ADS1015DataRate2400 = DataRate{0x5 << 5, 817 * time.Microsecond}
	ADS1015DataRate3300 = DataRate{0x6 << 5, 703 * time.Microsecond}
)

// Variant captures what distinguishes the two chips: conversion resolution,
// the largest positive code, and the right shift that discards the
// don't-care low bits of the conversion register.
type Variant interface {
	BitDepth() uint
	FullScaleCode() uint16
	ConversionShift() uint
}

// ADS1115 is the 16-bit variant.
type ADS1115 struct{}

func (ADS1115) BitDepth() uint        { return 16 }
func (ADS1115) FullScaleCode() uint16 { return 0x7FFF }
func (ADS1115) ConversionShift() uint { return 0 }

// ADS1015 is the 12-bit variant; its conversion register is left aligned.
type ADS1015 struct{}

func (ADS1015) BitDepth() uint        { return 12 }
func (ADS1015) FullScaleCode() uint16 { return 0x7FF }
func (ADS1015) ConversionShift() uint { return 4 }

type Config struct {
	Address byte
	Clock   adc.Clock
	Timeout time.Duration
}

type Option func(*Config)

func WithAddress(address byte) Option {
	return func(c *Config) {
		c.Address = address
	}
}

func WithClock(clock adc.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithTimeout sets the register read polling budget.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// Device is one ADS1015 or ADS1115 chip on the bus. It is not safe for
// concurrent use: the config mirror and the bus below it assume a single
// owner.
type Device struct {
	reg     *regio.Access[register, uint16]
	variant Variant
	clock   adc.Clock

	config      uint16
	fullScale   float64
	calibration float64
	delay       time.Duration
}

// New binds a Device to the chip of the given variant. The config mirror
// starts at the power-on-reset value with the chip's default gain applied;
// the caller (or one of the convenience constructors) must still pick a
// data rate so conversions get their settling delay.
func New(bus adc.Bus, variant Variant, opts ...Option) *Device {
	config := Config{
		Address: DefaultAddress,
		Clock:   adc.SystemClock,
		Timeout: regio.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&config)
	}
	d := &Device{
		reg: regio.New[register, uint16](bus, config.Address,
			regio.WithClock(config.Clock),
			regio.WithTimeout(config.Timeout),
		),
		variant:     variant,
		clock:       config.Clock,
		config:      porConfig,
		calibration: 1.0,
	}
	d.SetGain(GainTwo)
	return d
}

// NewADS1115 binds a Device to a 16-bit ADS1115 at its default data rate.
func NewADS1115(bus adc.Bus, opts ...Option) *Device {
	d := New(bus, ADS1115{}, opts...)
	d.SetDataRate(ADS1115DataRate128)
	return d
}

// NewADS1015 binds a Device to a 12-bit ADS1015 at its default data rate.
func NewADS1015(bus adc.Bus, opts ...Option) *Device {
	d := New(bus, ADS1015{}, opts...)
	d.SetDataRate(ADS1015DataRate1600)
	return d
}

// SetGain selects the amplifier range and refreshes the cached full-scale
// voltage used for result scaling.
func (d *Device) SetGain(gain Gain) {
	d.config = d.config&^gainMask | uint16(gain)
	d.fullScale = gain.FullScale()
}

// SetDataRate selects the sample rate and the matching conversion delay.
func (d *Device) SetDataRate(rate DataRate) {
	d.config = d.config&^dataRateMask | rate.bits
	d.delay = rate.delay
}

func (d *Device) SetComparatorMode(mode ComparatorMode) {
	d.config = d.config&^compModeMask | uint16(mode)
}

func (d *Device) SetComparatorPolarity(polarity ComparatorPolarity) {
	d.config = d.config&^compPolMask | uint16(polarity)
}

func (d *Device) SetComparatorLatch(latch ComparatorLatch) {
	d.config = d.config&^compLatMask | uint16(latch)
}

func (d *Device) SetComparatorQueue(queue ComparatorQueue) {
	d.config = d.config&^compQueMask | uint16(queue)
}

// SetThresholds programs the comparator window registers.
func (d *Device) SetThresholds(low, high int16) bool {
	if !d.reg.WriteRegister(regLoThresh, uint16(low)) {
		return false
	}
	return d.reg.WriteRegister(regHiThresh, uint16(high))
}

// SetCalibration sets the correction factor applied to the full-scale
// voltage when scaling results.
func (d *Device) SetCalibration(factor float64) {
	d.calibration = factor
}

// SetCalibrationDivider derives the calibration factor from a two-resistor
// input divider, (r1+r2)/r2. A non-positive r2 leaves the factor unchanged.
func (d *Device) SetCalibrationDivider(r1, r2 float64) {
	if r2 > 0 {
		d.calibration = (r1 + r2) / r2
	}
}

func (d *Device) Calibration() float64 {
	return d.calibration
}

// FullScaleVoltage is the calibrated voltage corresponding to the positive
// full-scale code at the current gain.
func (d *Device) FullScaleVoltage() float64 {
	return d.fullScale * d.calibration
}

// SetTimeout adjusts the register read polling budget.
func (d *Device) SetTimeout(timeout time.Duration) {
	d.reg.SetTimeout(timeout)
}

// TimedOut reports whether the last register read timed out. Like the
// engine flag it mirrors, it is only meaningful right after a read.
func (d *Device) TimedOut() bool {
	return d.reg.TimedOut()
}

// AttachTimeoutHandler registers a function called when a register read
// times out.
func (d *Device) AttachTimeoutHandler(handler func()) {
	d.reg.AttachTimeoutHandler(handler)
}

// AttachErrorHandler registers a function called with the bus status when a
// register write is not acknowledged.
func (d *Device) AttachErrorHandler(handler func(status byte)) {
	d.reg.AttachErrorHandler(handler)
}

// Read triggers a one-shot conversion on the given input selection and
// returns the signed conversion code. The config mirror, with the mux set
// and the one-shot bit raised, goes to the chip as a single register write;
// after the settling delay for the configured data rate the conversion
// register is collected, right-shifted per variant and sign-extended past
// the positive full-scale code.
func (d *Device) Read(mux Mux) int16 {
	d.config = d.config&^muxMask | uint16(mux)
	d.config |= configOS
	d.reg.WriteRegister(regConfig, d.config)
	d.clock.Sleep(d.delay)
	raw := d.reg.ReadRegister(regConversion) >> d.variant.ConversionShift()
	if raw > d.variant.FullScaleCode() {
		raw |= ^(d.variant.FullScaleCode()<<1 | 1)
	}
	return int16(raw)
}

// ReadChannel converts one single-ended input. Channels outside 0..3 read
// as zero.
func (d *Device) ReadChannel(channel int) int16 {
	switch channel {
	case 0:
		return d.Read(MuxSingle0)
	case 1:
		return d.Read(MuxSingle1)
	case 2:
		return d.Read(MuxSingle2)
	case 3:
		return d.Read(MuxSingle3)
	}
	return 0
}

// ReadVoltage converts one single-ended input and scales it to volts using
// the current gain and calibration factor.
func (d *Device) ReadVoltage(channel int) float64 {
	return d.FullScaleVoltage() * float64(d.ReadChannel(channel)) / float64(d.variant.FullScaleCode())
}

// ReadCurrent converts one single-ended input wired across a burden
// resistor and returns the measured voltage divided by the resistance.
// ReadLoopPercent interprets the quotient as milliamps. A non-positive
// resistance reads as zero.
func (d *Device) ReadCurrent(channel int, burdenOhms float64) float64 {
	if burdenOhms <= 0 {
		return 0
	}
	return d.ReadVoltage(channel) / burdenOhms
}

// ReadLoopPercent reads a 4-20 mA loop transmitter through a burden
// resistor and returns its output as a fraction of span, (i-4)/16.
func (d *Device) ReadLoopPercent(channel int, burdenOhms float64) float64 {
	return (d.ReadCurrent(channel, burdenOhms) - 4.0) / 16.0
}

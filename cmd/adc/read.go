package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sparky650/adc"
	"github.com/sparky650/adc/adapter"
	"github.com/sparky650/adc/ads1x15"
	"github.com/sparky650/adc/cmd/adc/console"
	"github.com/sparky650/adc/i2c"
)

var readFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"f"},
		Usage:   "YAML file with defaults for the flags below",
	},
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Usage:   "bus adapter: mcp2221, periph or gobot",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "bus device for the periph/gobot adapters",
	},
	&cli.IntFlag{
		Name:  "address",
		Usage: "7-bit chip address (0 uses the configured default)",
	},
	&cli.StringFlag{
		Name:    "chip",
		Aliases: []string{"c"},
		Usage:   "chip variant: ads1115 or ads1015",
	},
	&cli.IntFlag{
		Name:    "channel",
		Aliases: []string{"n"},
		Usage:   "single-ended input channel (0-3)",
	},
	&cli.StringFlag{
		Name:    "gain",
		Aliases: []string{"g"},
		Usage:   "PGA gain: 2/3, 1, 2, 4, 8 or 16",
	},
	&cli.IntFlag{
		Name:    "rate",
		Aliases: []string{"r"},
		Usage:   "sample rate in SPS (chip specific, 0 keeps the default)",
	},
	&cli.StringFlag{
		Name:    "unit",
		Aliases: []string{"u"},
		Value:   "volts",
		Usage:   "output unit: raw, volts, current or percent",
	},
	&cli.Float64Flag{
		Name:    "burden",
		Aliases: []string{"b"},
		Usage:   "burden resistor in ohms (current and percent units)",
	},
}

var readCmd = cli.Command{
	Name:  "read",
	Usage: "take one reading from an analog input",
	Flags: readFlags,
	Action: func(c *cli.Context) error {
		dev, config, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "device setup error: %s", console.Red(err))
		}
		return printReading(c, dev, config)
	},
}

var monitorCmd = cli.Command{
	Name:  "monitor",
	Usage: "read an analog input periodically",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Value:   time.Second,
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "number of readings to take (0 keeps going)",
		},
	}, readFlags...),
	Action: func(c *cli.Context) error {
		dev, config, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "device setup error: %s", console.Red(err))
		}
		count := c.Int("count")
		for i := 0; count == 0 || i < count; i++ {
			if i > 0 {
				time.Sleep(c.Duration("interval"))
			}
			if err := printReading(c, dev, config); err != nil {
				return err
			}
		}
		return nil
	},
}

func printReading(c *cli.Context, dev *ads1x15.Device, config fileConfig) error {
	channel := c.Int("channel")
	burden := c.Float64("burden")
	if burden == 0 {
		burden = config.BurdenOhms
	}
	switch c.String("unit") {
	case "raw":
		console.PInfof(console.PictoGauge, "channel %d: %s", channel, console.White(dev.ReadChannel(channel)))
	case "volts":
		console.PInfof(console.PictoBolt, "channel %d: %s V", channel, console.White(dev.ReadVoltage(channel)))
	case "current":
		console.PInfof(console.PictoBolt, "channel %d: %s mA", channel, console.White(dev.ReadCurrent(channel, burden)))
	case "percent":
		console.PInfof(console.PictoGauge, "channel %d: %s %%", channel, console.White(dev.ReadLoopPercent(channel, burden)*100))
	default:
		return console.Exit(1, "unknown unit %q", c.String("unit"))
	}
	if dev.TimedOut() {
		console.Warnf("conversion read timed out; value is a placeholder zero")
	}
	return nil
}

// openDevice builds the bus and device a command works against, merging
// flags over the optional config file.
func openDevice(c *cli.Context) (*ads1x15.Device, fileConfig, error) {
	config, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, config, err
	}
	if s := c.String("adapter"); s != "" {
		config.Adapter = s
	}
	if s := c.String("device"); s != "" {
		config.Device = s
	}
	if a := c.Int("address"); a != 0 {
		config.Address = uint8(a)
	}
	if s := c.String("chip"); s != "" {
		config.Chip = s
	}
	if s := c.String("gain"); s != "" {
		config.Gain = s
	}

	bus, err := openBus(config)
	if err != nil {
		return nil, config, err
	}

	var dev *ads1x15.Device
	switch config.Chip {
	case "ads1115":
		dev = ads1x15.NewADS1115(bus, ads1x15.WithAddress(config.Address))
	case "ads1015":
		dev = ads1x15.NewADS1015(bus, ads1x15.WithAddress(config.Address))
	default:
		return nil, config, fmt.Errorf("unknown chip %q", config.Chip)
	}

	gain, err := parseGain(config.Gain)
	if err != nil {
		return nil, config, err
	}
	dev.SetGain(gain)
	dev.SetCalibration(config.Calibration)
	if sps := c.Int("rate"); sps != 0 {
		rate, err := parseRate(config.Chip, sps)
		if err != nil {
			return nil, config, err
		}
		dev.SetDataRate(rate)
	}
	dev.AttachErrorHandler(func(status byte) {
		console.Errorf("bus write not acknowledged (status %d)", status)
	})
	return dev, config, nil
}

func openBus(config fileConfig) (adc.Bus, error) {
	switch config.Adapter {
	case "mcp2221":
		return adapter.NewMCP2221(), nil
	case "periph":
		return i2c.NewWireBus(config.Device)
	case "gobot":
		busNum, err := strconv.Atoi(config.Device)
		if err != nil {
			return nil, fmt.Errorf("gobot adapter expects a bus number, got %q", config.Device)
		}
		return newGobotBus(busNum)
	}
	return nil, fmt.Errorf("unknown adapter %q", config.Adapter)
}

func parseGain(s string) (ads1x15.Gain, error) {
	switch s {
	case "2/3":
		return ads1x15.GainTwoThirds, nil
	case "1":
		return ads1x15.GainOne, nil
	case "2":
		return ads1x15.GainTwo, nil
	case "4":
		return ads1x15.GainFour, nil
	case "8":
		return ads1x15.GainEight, nil
	case "16":
		return ads1x15.GainSixteen, nil
	}
	return 0, fmt.Errorf("unknown gain %q", s)
}

func parseRate(chip string, sps int) (ads1x15.DataRate, error) {
	rates := map[int]ads1x15.DataRate{
		8: ads1x15.ADS1115DataRate8, 16: ads1x15.ADS1115DataRate16,
		32: ads1x15.ADS1115DataRate32, 64: ads1x15.ADS1115DataRate64,
		128: ads1x15.ADS1115DataRate128, 250: ads1x15.ADS1115DataRate250,
		475: ads1x15.ADS1115DataRate475, 860: ads1x15.ADS1115DataRate860,
	}
	if chip == "ads1015" {
		rates = map[int]ads1x15.DataRate{
			128: ads1x15.ADS1015DataRate128, 250: ads1x15.ADS1015DataRate250,
			490: ads1x15.ADS1015DataRate490, 920: ads1x15.ADS1015DataRate920,
			1600: ads1x15.ADS1015DataRate1600, 2400: ads1x15.ADS1015DataRate2400,
			3300: ads1x15.ADS1015DataRate3300,
		}
	}
	rate, ok := rates[sps]
	if !ok {
		return ads1x15.DataRate{}, fmt.Errorf("unsupported sample rate %d for %s", sps, chip)
	}
	return rate, nil
}

package main

import (
	"github.com/urfave/cli/v2"

	"github.com/sparky650/adc/cmd/adc/console"
)

var calibrateCmd = cli.Command{
	Name:  "calibrate",
	Usage: "derive a voltage divider calibration factor and try it out",
	Flags: append([]cli.Flag{
		&cli.Float64Flag{
			Name:     "r1",
			Usage:    "upper divider resistor in ohms",
			Required: true,
		},
		&cli.Float64Flag{
			Name:     "r2",
			Usage:    "lower divider resistor in ohms",
			Required: true,
		},
	}, readFlags...),
	Action: func(c *cli.Context) error {
		dev, config, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "device setup error: %s", console.Red(err))
		}
		dev.SetCalibrationDivider(c.Float64("r1"), c.Float64("r2"))
		console.PInfof(console.PictoGauge, "calibration factor: %s", console.White(dev.Calibration()))

		channel := c.Int("channel")
		console.PInfof(console.PictoBolt, "channel %d: %s V", channel, console.White(dev.ReadVoltage(channel)))
		if dev.TimedOut() {
			console.Warnf("conversion read timed out; check the wiring before saving")
		}

		path := c.String("config")
		if path == "" {
			return nil
		}
		save, err := console.YesOrNo("save calibration to " + path + "?")
		if err != nil {
			return console.Exit(1, "prompt error: %s", console.Red(err))
		}
		if !save {
			return nil
		}
		config.Calibration = dev.Calibration()
		if err := saveConfig(path, config); err != nil {
			return console.Exit(1, "could not save config: %s", console.Red(err))
		}
		console.PInfof(console.PictoPin, "calibration saved to %s", console.Green(path))
		return nil
	},
}

package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/sparky650/adc/adapter"
	"github.com/sparky650/adc/cmd/adc/console"
)

var statusCmd = cli.Command{
	Name:  "status",
	Usage: "query and release the MCP2221 bus adapter",
	Subcommands: []*cli.Command{
		{
			Name: "show",
			Action: func(c *cli.Context) error {
				a := adapter.NewMCP2221()
				status, err := a.Status()
				if err != nil {
					return console.Exit(1, "adapter communication error: %s", console.Red(err))
				}
				return dumpStatus(status)
			},
		},
		{
			Name: "release",
			Action: func(c *cli.Context) error {
				a := adapter.NewMCP2221()
				status, err := a.ReleaseBus()
				if err != nil {
					return console.Exit(1, "adapter communication error: %s", console.Red(err))
				}
				return dumpStatus(status)
			},
		},
	},
}

func dumpStatus(status *adapter.Status) error {
	enc := yaml.NewEncoder(os.Stdout)
	if err := enc.Encode(status); err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return enc.Close()
}

// basketctl runs the basket optimizer offline against JSON files.
//
// Usage:
//
//	basketctl optimize --offers offers.json [--exclusions excl.json] [--engine batch]
//	basketctl validate-fees --model fees.json --amount 420
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "basketctl",
		Usage:   "Pick the cheapest multi-vendor basket for an order",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"BASKETOPT_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			optimizeCommand(),
			validateFeesCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

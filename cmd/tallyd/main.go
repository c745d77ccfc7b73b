package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"BlindTally/internal/config"
	"BlindTally/internal/logger"
)

func main() {
	logger.Init()

	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run builds the command tree and executes it.
func run(args []string) error {
	app := &cli.App{
		Name:  "tallyd",
		Usage: "confidential batch aggregation coordinator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file (yaml, toml or json)",
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			&Simulate,
			&Inspect,
			&Export,
			&Events,
		},
	}

	return app.Run(args)
}

// loadConfig reads the --config file and applies its log level.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config:\n%w", err)
	}

	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	return cfg, nil
}

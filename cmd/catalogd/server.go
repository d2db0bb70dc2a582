package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/catalogd/cmd/catalogd/server"
	"github.com/atlanticdynamic/catalogd/internal/config"
	"github.com/urfave/cli/v3"
)

func newServerCmd() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Start the catalogd server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to TOML configuration file",
				Aliases: []string{"c"},
				Sources: cli.EnvVars("CATALOGD_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "manifest",
				Usage:   "Root manifest file",
				Aliases: []string{"m"},
			},
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Address to bind the gRPC service (tcp://host:port or unix:///path/to/socket)",
				Aliases: []string{"l"},
			},
			&cli.StringFlag{
				Name:  "http-listen",
				Usage: "Address to bind the HTTP service (host:port)",
			},
			&cli.DurationFlag{
				Name:  "check-interval",
				Usage: "Minimum time between manifest freshness checks",
			},
			&cli.StringSliceFlag{
				Name:  "class",
				Usage: "Extra class evaluated for every node in node-agnostic mode (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "use-nodes",
				Usage: "Select node entries by client name",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := serverConfig(cmd)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			if cfg.SourcePath() != "" && !cmd.Root().IsSet("log-level") && !cmd.Root().IsSet("log-format") {
				err := SetupLogger(cfg.Logging.Format.String(), cfg.Logging.Level.String(), cfg.Logging.Output)
				if err != nil {
					return cli.Exit(fmt.Errorf("failed to set up logging: %w", err), 1)
				}
			}

			if err := server.Run(ctx, slog.Default(), cfg); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// serverConfig loads the config file, if any, and applies command line overrides.
func serverConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.NewDefault()
	if path := cmd.String("config"); path != "" {
		var err error
		if cfg, err = config.NewConfig(path); err != nil {
			return nil, err
		}
	}

	if cmd.IsSet("manifest") {
		cfg.Manifest = cmd.String("manifest")
	}
	if cmd.IsSet("listen") {
		cfg.GRPC.Listen = cmd.String("listen")
	}
	if cmd.IsSet("http-listen") {
		cfg.HTTP.Listen = cmd.String("http-listen")
	}
	if cmd.IsSet("check-interval") {
		cfg.CheckInterval = config.FromDuration(cmd.Duration("check-interval"))
	}
	if cmd.IsSet("class") {
		cfg.Classes = cmd.StringSlice("class")
	}
	if cmd.IsSet("use-nodes") {
		useNodes := cmd.Bool("use-nodes")
		cfg.UseNodes = &useNodes
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrFailedToValidateConfig, err)
	}
	return cfg, nil
}

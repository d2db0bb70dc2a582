package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/atlanticdynamic/catalogd/internal/client"
	"github.com/atlanticdynamic/catalogd/internal/config"
	"github.com/atlanticdynamic/catalogd/internal/format"
	"github.com/urfave/cli/v3"
)

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "server",
		Usage:   "Server address (tcp://host:port or unix:///path/to/socket)",
		Aliases: []string{"s"},
		Value:   config.DefaultGRPCListen,
		Sources: cli.EnvVars("CATALOGD_SERVER"),
	}
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:    "timeout",
		Usage:   "Timeout for the request",
		Aliases: []string{"t"},
		Value:   30 * time.Second,
	}
}

func newClientCmd() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "Query a running catalogd server",
		Commands: []*cli.Command{
			{
				Name:   "freshness",
				Usage:  "Print the time of the server's last successful compile",
				Flags:  []cli.Flag{serverFlag(), timeoutFlag()},
				Action: clientFreshnessAction,
			},
			{
				Name:      "get",
				Usage:     "Request the catalog for a node",
				ArgsUsage: "[node]",
				Flags: []cli.Flag{
					serverFlag(),
					timeoutFlag(),
					&cli.StringFlag{
						Name:    "format",
						Usage:   "Serialization used on the wire and for the output (yaml, json, cbor)",
						Aliases: []string{"f"},
						Value:   format.SchemeJSON.String(),
					},
					&cli.StringFlag{Name: "facts", Usage: "File with the node's facts"},
					&cli.StringFlag{Name: "facts-format", Usage: "Format of the facts file, default from the file extension"},
					&cli.StringSliceFlag{Name: "fact", Usage: "Fact as key=value (repeatable)"},
					&cli.StringFlag{
						Name:    "output",
						Usage:   "Write the encoded catalog to this file instead of printing a tree",
						Aliases: []string{"o"},
					},
				},
				Action: clientGetAction,
			},
		},
	}
}

func withTimeout(ctx context.Context, cmd *cli.Command) (context.Context, context.CancelFunc) {
	if d := cmd.Duration("timeout"); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func clientFreshnessAction(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := withTimeout(ctx, cmd)
	defer cancel()

	c := client.New(client.Config{Logger: slog.Default(), ServerAddr: cmd.String("server")})
	fresh, err := c.Freshness(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	out := cmd.Root().Writer
	if fresh.IsZero() {
		_, err = fmt.Fprintln(out, "0 (no manifest compiled yet)")
		return err
	}
	_, err = fmt.Fprintf(out, "%d (%s)\n", fresh.Unix(), fresh.UTC().Format(time.RFC3339))
	return err
}

func clientGetAction(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := withTimeout(ctx, cmd)
	defer cancel()

	facts, err := loadFacts(cmd.String("facts"), cmd.String("facts-format"), cmd.StringSlice("fact"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	node := cmd.Args().First()
	if node == "" && facts.Hostname() == "" {
		return cli.Exit("node name or hostname fact required", 1)
	}
	if facts.Hostname() == "" {
		facts["hostname"] = node
	}

	formatName := cmd.String("format")
	c := client.New(client.Config{Logger: slog.Default(), ServerAddr: cmd.String("server")})
	cat, err := c.GetConfiguration(ctx, facts, formatName, node)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if path := cmd.String("output"); path != "" {
		scheme, err := format.Parse(formatName)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		data, err := scheme.Encode(cat)
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to encode catalog: %w", err), 1)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return cli.Exit(fmt.Errorf("failed to write catalog: %w", err), 1)
		}
		slog.Info("Catalog saved", "path", path, "resources", len(cat.Resources))
		return nil
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, cat)
	return err
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "catalogd",
		Version: Version,
		Usage:   "Compile site manifests into per-node catalogs and serve them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (trace, debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("CATALOGD_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("CATALOGD_LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:  "log-output",
				Usage: "Log destination (stdout, stderr, or a file path)",
				Value: "stderr",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, SetupLogger(cmd.String("log-format"), cmd.String("log-level"), cmd.String("log-output"))
		},
		Commands: []*cli.Command{
			newServerCmd(),
			newCompileCmd(),
			newValidateCmd(),
			newClientCmd(),
			newVersionCmd(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

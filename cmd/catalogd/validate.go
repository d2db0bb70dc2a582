package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/atlanticdynamic/catalogd/internal/config"
	"github.com/atlanticdynamic/catalogd/internal/evaluator"
	"github.com/atlanticdynamic/catalogd/internal/manifest"
	"github.com/urfave/cli/v3"
)

func newValidateCmd() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"lint"},
		Usage:   "Validate manifests or service configuration files",
		Commands: []*cli.Command{
			{
				Name:      "manifest",
				Usage:     "Parse and check one or more root manifests",
				ArgsUsage: "<manifest.toml>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Do not print the manifest tree"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return validatePaths(cmd, validateManifest)
				},
			},
			{
				Name:      "config",
				Usage:     "Load and check one or more catalogd configuration files",
				ArgsUsage: "<catalogd.toml>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Do not print the configuration tree"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return validatePaths(cmd, validateConfig)
				},
			},
		},
	}
}

// validator checks one file and returns its rendering.
type validator func(path string) (fmt.Stringer, error)

func validatePaths(cmd *cli.Command, validate validator) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return cli.Exit("at least one file path required", 1)
	}

	out := cmd.Root().Writer
	var failed []error
	for _, path := range paths {
		result, err := validate(path)
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if err := report(out, path, result, cmd.Bool("quiet")); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		return cli.Exit(fmt.Sprintf("validation failed:\n%v", errors.Join(failed...)), 1)
	}
	return nil
}

func report(out io.Writer, path string, result fmt.Stringer, quiet bool) error {
	if _, err := fmt.Fprintf(out, "%s is valid\n", path); err != nil {
		return err
	}
	if quiet {
		return nil
	}
	_, err := fmt.Fprintf(out, "\n%s\n", result)
	return err
}

func validateManifest(path string) (fmt.Stringer, error) {
	logger := slog.Default()
	src := manifest.NewSource(nil, path)
	if !src.Exists() {
		return nil, fmt.Errorf("manifest does not exist")
	}
	tree, err := manifest.NewParser(src, logger).Parse()
	if err != nil {
		return nil, err
	}
	if _, err := evaluator.New(logger).Prepare(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func validateConfig(path string) (fmt.Stringer, error) {
	cfg, err := config.NewConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

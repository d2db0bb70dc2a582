package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/catalogd/internal/config"
	"github.com/atlanticdynamic/catalogd/internal/format"
	"github.com/atlanticdynamic/catalogd/internal/interpreter"
	"github.com/atlanticdynamic/catalogd/internal/master"
	"github.com/urfave/cli/v3"
)

func newCompileCmd() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "Compile the catalog for a node locally and print it",
		ArgsUsage: "<node>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "manifest",
				Usage:   "Root manifest file",
				Aliases: []string{"m"},
				Value:   config.DefaultManifest,
			},
			&cli.StringFlag{
				Name:  "facts",
				Usage: "File with the node's facts (yaml, json or cbor)",
			},
			&cli.StringFlag{
				Name:  "facts-format",
				Usage: "Format of the facts file, default from the file extension",
			},
			&cli.StringSliceFlag{
				Name:  "fact",
				Usage: "Fact as key=value, overrides the facts file (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "class",
				Usage: "Extra class to evaluate in node-agnostic mode (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "use-nodes",
				Usage: "Select the node entry by name instead of evaluating the manifest directly",
			},
			&cli.StringFlag{
				Name:    "format",
				Usage:   "Print the catalog encoded as yaml, json or cbor instead of as a tree",
				Aliases: []string{"f"},
			},
		},
		Action: compileAction,
	}
}

func compileAction(ctx context.Context, cmd *cli.Command) error {
	node := cmd.Args().First()
	if node == "" {
		return cli.Exit("node name required", 1)
	}

	facts, err := loadFacts(cmd.String("facts"), cmd.String("facts-format"), cmd.StringSlice("fact"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if facts.Hostname() == "" {
		facts["hostname"] = node
	}

	var explicit *bool
	if cmd.IsSet("use-nodes") {
		useNodes := cmd.Bool("use-nodes")
		explicit = &useNodes
	}

	interp, err := interpreter.New(cmd.String("manifest"),
		interpreter.WithLogHandler(slog.Default().Handler()),
		interpreter.WithUseNodes(master.ModeLocal.UseNodes(explicit)),
		interpreter.WithClasses(cmd.StringSlice("class")),
	)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	svc, err := master.NewLocal(interp, master.WithLogHandler(slog.Default().Handler()))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	resp, err := svc.GetConfiguration(ctx, &master.Request{Facts: facts, Client: node})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	out := cmd.Root().Writer
	if name := cmd.String("format"); name != "" {
		scheme, err := format.Parse(name)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		data, err := scheme.Encode(resp.Catalog)
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to encode catalog: %w", err), 1)
		}
		_, err = out.Write(data)
		return errors.Join(err, writeNewline(out, scheme))
	}

	_, err = fmt.Fprintln(out, resp.Catalog)
	return err
}

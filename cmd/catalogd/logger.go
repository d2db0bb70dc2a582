package main

import (
	"log/slog"

	"github.com/atlanticdynamic/catalogd/internal/logging"
)

// SetupLogger installs the default logger for the given format, level and output.
func SetupLogger(format, level, output string) error {
	handler, err := logging.NewHandler(format, level, output)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

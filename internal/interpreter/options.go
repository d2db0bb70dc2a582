package interpreter

import (
	"log/slog"
	"time"

	"github.com/atlanticdynamic/catalogd/internal/metrics"
	"github.com/spf13/afero"
)

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets a custom logger for the Interpreter instance.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) {
		i.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Interpreter instance.
func WithLogHandler(handler slog.Handler) Option {
	return func(i *Interpreter) {
		i.logger = slog.New(handler)
	}
}

// WithCheckInterval sets the minimum time between two manifest freshness checks.
func WithCheckInterval(d time.Duration) Option {
	return func(i *Interpreter) {
		i.checkInterval = d
	}
}

// WithUseNodes selects node-aware (true) or node-agnostic (false) evaluation.
func WithUseNodes(useNodes bool) Option {
	return func(i *Interpreter) {
		i.useNodes = useNodes
	}
}

// WithClasses sets the extra classes evaluated in node-agnostic mode.
func WithClasses(classes []string) Option {
	return func(i *Interpreter) {
		i.classes = append([]string(nil), classes...)
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) {
		i.now = now
	}
}

// WithMetrics enables compile and freshness check metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Interpreter) {
		i.metrics = m
	}
}

// WithFs reads the manifest from fsys instead of the host filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(i *Interpreter) {
		i.fs = fsys
	}
}

// WithSource replaces the manifest source.
func WithSource(src Source) Option {
	return func(i *Interpreter) {
		i.source = src
	}
}

// WithParser replaces the manifest parser.
func WithParser(p Parser) Option {
	return func(i *Interpreter) {
		i.parser = p
	}
}

// WithEvaluator replaces the evaluator.
func WithEvaluator(e Evaluator) Option {
	return func(i *Interpreter) {
		i.evaluator = e
	}
}

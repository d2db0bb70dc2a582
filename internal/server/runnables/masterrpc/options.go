package masterrpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
)

// Option represents a functional option for configuring Runner.
type Option func(*Runner)

// WithLogHandler sets a custom slog handler for the Runner instance.
func WithLogHandler(handler slog.Handler) Option {
	return func(r *Runner) {
		if handler != nil {
			r.logger = slog.New(handler).WithGroup("masterrpc.Runner")
		}
	}
}

// WithLogger sets a logger for the Runner instance.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithContext sets a custom parent context for the Runner instance.
func WithContext(ctx context.Context) Option {
	return func(r *Runner) {
		r.parentCtx = ctx
	}
}

// WithServerOptions passes extra options, such as TLS credentials, to grpc.NewServer.
func WithServerOptions(opts ...grpc.ServerOption) Option {
	return func(r *Runner) {
		r.serverOpts = append(r.serverOpts, opts...)
	}
}

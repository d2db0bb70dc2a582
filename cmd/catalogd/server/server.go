// Package server assembles the catalogd runnables and runs them under a supervisor.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/catalogd/internal/config"
	"github.com/atlanticdynamic/catalogd/internal/interpreter"
	"github.com/atlanticdynamic/catalogd/internal/master"
	"github.com/atlanticdynamic/catalogd/internal/metrics"
	"github.com/atlanticdynamic/catalogd/internal/server/runnables/compiler"
	"github.com/atlanticdynamic/catalogd/internal/server/runnables/masterhttp"
	"github.com/atlanticdynamic/catalogd/internal/server/runnables/masterrpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robbyt/go-supervisor/supervisor"
)

// ErrLocalMode is returned when the server is started with a local mode configuration.
var ErrLocalMode = errors.New("the server only runs in remote mode; use compile for local catalogs")

// Runnables builds the compiler and the configured transports. The compiler comes first so
// the manifest is compiled before the listeners accept requests.
func Runnables(ctx context.Context, logger *slog.Logger, cfg *config.Config) ([]supervisor.Runnable, error) {
	mode, err := cfg.ServiceMode()
	if err != nil {
		return nil, err
	}
	if mode != master.ModeRemote {
		return nil, ErrLocalMode
	}
	logHandler := logger.Handler()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	interp, err := interpreter.New(cfg.Manifest,
		interpreter.WithLogHandler(logHandler),
		interpreter.WithCheckInterval(cfg.CheckInterval.AsDuration()),
		interpreter.WithUseNodes(cfg.NodeAware()),
		interpreter.WithClasses(cfg.Classes),
		interpreter.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}

	svc, err := master.New(mode, interp, master.WithLogHandler(logHandler), master.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("failed to create master service: %w", err)
	}

	compilerRunner, err := compiler.NewRunner(interp,
		compiler.WithContext(ctx),
		compiler.WithLogHandler(logHandler),
		compiler.WithWarmInterval(cfg.WarmInterval.AsDuration()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compiler: %w", err)
	}
	runnables := []supervisor.Runnable{compilerRunner}

	if cfg.GRPC.Listen != "" {
		service, err := masterrpc.NewService(svc, logger)
		if err != nil {
			return nil, err
		}
		rpcRunner, err := masterrpc.NewRunner(cfg.GRPC.Listen, service,
			masterrpc.WithContext(ctx),
			masterrpc.WithLogHandler(logHandler),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC listener: %w", err)
		}
		runnables = append(runnables, rpcRunner)
	}

	if cfg.HTTP.Listen != "" {
		handlers, err := masterhttp.NewHandlers(svc, reg, logger)
		if err != nil {
			return nil, err
		}
		httpServer, err := masterhttp.NewServer(cfg.HTTP.Listen, handlers, masterhttp.Timeouts{
			Read:  cfg.HTTP.ReadTimeout.AsDuration(),
			Write: cfg.HTTP.WriteTimeout.AsDuration(),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP listener: %w", err)
		}
		runnables = append(runnables, httpServer)
	}

	return runnables, nil
}

// Run starts catalogd and blocks until ctx is canceled or a shutdown signal arrives. SIGHUP
// forces a manifest recheck.
func Run(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	runnables, err := Runnables(ctx, logger, cfg)
	if err != nil {
		return err
	}

	super, err := supervisor.New(
		supervisor.WithContext(ctx),
		supervisor.WithLogHandler(logger.Handler()),
		supervisor.WithRunnables(runnables...),
	)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	logger.Info("Starting catalogd",
		"manifest", cfg.Manifest,
		"grpc", cfg.GRPC.Listen,
		"http", cfg.HTTP.Listen,
		"nodeAware", cfg.NodeAware())
	if err := super.Run(); err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}

	logger.Info("Server shutdown complete")
	return nil
}

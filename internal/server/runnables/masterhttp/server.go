// Package masterhttp serves the master service over HTTP, alongside the Prometheus metrics
// endpoint, using the go-supervisor HTTP server runnable.
package masterhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robbyt/go-supervisor/runnables/httpserver"
	"github.com/robbyt/go-supervisor/supervisor"
)

var (
	_ supervisor.Runnable  = (*Server)(nil)
	_ supervisor.Stateable = (*Server)(nil)
)

// Timeouts for the HTTP server. Zero values keep the go-supervisor defaults.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
	Drain time.Duration
}

// runnable is the part of the go-supervisor HTTP runner the server delegates to.
type runnable interface {
	Run(ctx context.Context) error
	Stop()
	GetState() string
	IsRunning() bool
	GetStateChan(ctx context.Context) <-chan string
}

// Server is a supervisor runnable for the HTTP transport.
type Server struct {
	address  string
	routes   []httpserver.Route
	timeouts Timeouts
	logger   *slog.Logger
	runner   runnable
}

// NewServer creates a Server listening on address with the routes from handlers.
func NewServer(address string, handlers *Handlers, timeouts Timeouts, logger *slog.Logger) (*Server, error) {
	if address == "" {
		return nil, errors.New("listen address cannot be empty")
	}
	if handlers == nil {
		return nil, errors.New("handlers are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	routes, err := handlers.Routes()
	if err != nil {
		return nil, fmt.Errorf("failed to build routes: %w", err)
	}

	s := &Server{
		address:  address,
		routes:   routes,
		timeouts: timeouts,
		logger:   logger.WithGroup("masterhttp.Server"),
	}

	runner, err := httpserver.NewRunner(httpserver.WithConfigCallback(s.config))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP server runner: %w", err)
	}
	s.runner = runner
	return s, nil
}

func (s *Server) config() (*httpserver.Config, error) {
	var opts []httpserver.ConfigOption
	if s.timeouts.Read > 0 {
		opts = append(opts, httpserver.WithReadTimeout(s.timeouts.Read))
	}
	if s.timeouts.Write > 0 {
		opts = append(opts, httpserver.WithWriteTimeout(s.timeouts.Write))
	}
	if s.timeouts.Idle > 0 {
		opts = append(opts, httpserver.WithIdleTimeout(s.timeouts.Idle))
	}
	if s.timeouts.Drain > 0 {
		opts = append(opts, httpserver.WithDrainTimeout(s.timeouts.Drain))
	}
	cfg, err := httpserver.NewConfig(s.address, s.routes, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP server config: %w", err)
	}
	return cfg, nil
}

func (s *Server) String() string {
	return fmt.Sprintf("masterhttp.Server[%s]", s.address)
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.address
}

func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", "address", s.address, "routes", len(s.routes))
	return s.runner.Run(ctx)
}

func (s *Server) Stop() {
	s.logger.Info("Stopping HTTP server", "address", s.address)
	s.runner.Stop()
}

func (s *Server) GetState() string {
	return s.runner.GetState()
}

func (s *Server) IsRunning() bool {
	return s.runner.IsRunning()
}

func (s *Server) GetStateChan(ctx context.Context) <-chan string {
	return s.runner.GetStateChan(ctx)
}

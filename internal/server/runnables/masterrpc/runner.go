// Package masterrpc serves the master service over gRPC as a go-supervisor runnable.
package masterrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/atlanticdynamic/catalogd/internal/rpcapi"
	"github.com/atlanticdynamic/catalogd/internal/server/finitestate"
	"github.com/robbyt/go-supervisor/supervisor"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	_ supervisor.Runnable  = (*Runner)(nil)
	_ supervisor.Stateable = (*Runner)(nil)
)

type Runner struct {
	service    rpcapi.MasterServer
	listenAddr string
	serverOpts []grpc.ServerOption

	mu         sync.Mutex
	grpcServer *grpc.Server
	listener   net.Listener

	logger *slog.Logger
	fsm    finitestate.Machine

	parentCtx context.Context
	runCtx    context.Context
	runCancel context.CancelFunc
}

// NewRunner creates a Runner that serves service on listenAddr once Run is called.
func NewRunner(listenAddr string, service rpcapi.MasterServer, opts ...Option) (*Runner, error) {
	if listenAddr == "" {
		return nil, errors.New("listen address cannot be empty")
	}
	if service == nil {
		return nil, errors.New("service is required")
	}
	if _, _, err := parseListenAddr(listenAddr); err != nil {
		return nil, err
	}

	r := &Runner{
		service:    service,
		listenAddr: listenAddr,
		logger:     slog.Default().WithGroup("masterrpc.Runner"),
		parentCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}

	fsm, err := finitestate.New(r.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, err
	}
	r.fsm = fsm
	r.runCtx, r.runCancel = context.WithCancel(r.parentCtx)
	return r, nil
}

func (r *Runner) String() string {
	return "masterrpc.Runner"
}

// Addr returns the bound listen address while the server is running, or nil.
func (r *Runner) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Run listens, serves until ctx or the parent context is canceled or Stop is called, then
// drains in-flight requests.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Debug("Starting Runner", "listen", r.listenAddr)
	if err := r.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	lis, err := listen(r.listenAddr, r.logger)
	if err != nil {
		finitestate.Fail(r.fsm, r.logger)
		return err
	}

	opts := append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(r.logRequests)}, r.serverOpts...)
	srv := grpc.NewServer(opts...)
	rpcapi.RegisterMasterServer(srv, r.service)

	r.mu.Lock()
	r.grpcServer, r.listener = srv, lis
	r.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		srv.Stop()
		return fmt.Errorf("failed to transition to running state: %w", err)
	}
	r.logger.Info("gRPC server started", "address", lis.Addr().String())

	select {
	case <-ctx.Done():
	case <-r.runCtx.Done():
	case err, ok := <-serveErr:
		if ok {
			r.logger.Error("gRPC server failed", "error", err)
			finitestate.Fail(r.fsm, r.logger)
			r.clear()
			return fmt.Errorf("gRPC server error: %w", err)
		}
	}

	if r.fsm.GetState() != finitestate.StatusStopping {
		if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
			r.logger.Error("Failed to transition to stopping state", "error", err)
		}
	}
	srv.GracefulStop()
	r.clear()
	r.logger.Info("gRPC server stopped", "listen", r.listenAddr)

	if err := r.fsm.Transition(finitestate.StatusStopped); err != nil {
		return fmt.Errorf("failed to transition to stopped state: %w", err)
	}
	return nil
}

func (r *Runner) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grpcServer, r.listener = nil, nil
}

// Stop asks Run to shut the server down gracefully.
func (r *Runner) Stop() {
	r.logger.Debug("Stopping Runner")
	if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
		r.logger.Debug("Stop called outside running state", "state", r.fsm.GetState())
	}
	r.runCancel()
}

// logRequests logs every call with its request id, outcome and duration.
func (r *Runner) logRequests(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	ctx, requestID := withRequestID(ctx)
	resp, err := handler(ctx, req)
	r.logger.Debug("Handled request",
		"method", info.FullMethod,
		"requestID", requestID,
		"code", status.Code(err).String(),
		"duration", time.Since(start))
	return resp, err
}

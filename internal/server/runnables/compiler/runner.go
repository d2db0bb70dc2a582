// Package compiler runs the manifest interpreter under go-supervisor: it compiles the manifest
// at boot, optionally keeps it warm, and forces a recheck on reload (SIGHUP).
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/atlanticdynamic/catalogd/internal/server/finitestate"
	"github.com/robbyt/go-supervisor/supervisor"
)

var (
	_ supervisor.Runnable   = (*Runner)(nil)
	_ supervisor.Reloadable = (*Runner)(nil)
	_ supervisor.Stateable  = (*Runner)(nil)
)

// Cache is the part of the interpreter the runner drives.
type Cache interface {
	Location() string
	Refresh() error
	ForceCheck()
	Freshness() int64
}

type Runner struct {
	cache        Cache
	warmInterval time.Duration

	logger *slog.Logger
	fsm    finitestate.Machine

	runCtx    context.Context
	runCancel context.CancelFunc
	parentCtx context.Context
}

// NewRunner creates a Runner around cache.
func NewRunner(cache Cache, opts ...Option) (*Runner, error) {
	if cache == nil {
		return nil, errors.New("cache is required")
	}
	r := &Runner{
		cache:     cache,
		logger:    slog.Default().WithGroup("compiler.Runner"),
		parentCtx: context.Background(),
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

// String implements the supervisor.Runnable interface
func (r *Runner) String() string {
	return "compiler.Runner"
}

// Run implements the supervisor.Runnable interface. A manifest that fails to compile at boot
// is logged and left for the first request to report, so the transports still come up.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Debug("Starting Runner", "manifest", r.cache.Location())

	if err := r.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	r.refresh("boot")

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}

	var tick <-chan time.Time
	if r.warmInterval > 0 {
		ticker := time.NewTicker(r.warmInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Context canceled")
			return r.shutdown()
		case <-r.runCtx.Done():
			r.logger.Debug("Run context canceled")
			return r.shutdown()
		case <-tick:
			r.refresh("warm")
		}
	}
}

func (r *Runner) shutdown() error {
	r.logger.Info("Runner shutting down")
	return finitestate.Shutdown(r.fsm)
}

// refresh compiles the manifest if it is due. Internal defects are logged at error level;
// configuration problems are expected while an operator edits the manifest.
func (r *Runner) refresh(reason string) {
	err := r.cache.Refresh()
	switch {
	case err == nil:
		r.logger.Debug("Manifest is current", "reason", reason, "freshness", r.cache.Freshness())
	case errz.IsConfigurationError(err):
		r.logger.Warn("Manifest did not compile", "reason", reason, "error", err)
	default:
		r.logger.Error("Unexpected error compiling manifest", "reason", reason, "error", err)
	}
}

// Stop implements the supervisor.Runnable interface
func (r *Runner) Stop() {
	r.logger.Debug("Stopping Runner")
	if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
		r.logger.Error("Failed to transition to stopping state", "error", err)
	}
	r.runCancel()
}

// Reload implements the supervisor.Reloadable interface. It bypasses the check interval and
// recompiles immediately if the manifest changed.
func (r *Runner) Reload() {
	r.logger.Debug("Starting Reload...")
	if !r.fsm.TransitionBool(finitestate.StatusReloading) {
		r.logger.Warn("Reload requested while not running", "state", r.fsm.GetState())
		return
	}

	r.cache.ForceCheck()
	r.refresh("reload")

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		r.logger.Error("Failed to transition to running state", "error", err)
		finitestate.Fail(r.fsm, r.logger)
		return
	}
	r.logger.Debug("Reload completed")
}

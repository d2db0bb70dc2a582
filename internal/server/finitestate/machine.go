// Package finitestate wraps go-fsm with the lifecycle states shared by the catalogd runnables.
package finitestate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robbyt/go-fsm"
)

const (
	StatusNew       = fsm.StatusNew
	StatusBooting   = fsm.StatusBooting
	StatusRunning   = fsm.StatusRunning
	StatusReloading = fsm.StatusReloading
	StatusStopping  = fsm.StatusStopping
	StatusStopped   = fsm.StatusStopped
	StatusError     = fsm.StatusError
	StatusUnknown   = fsm.StatusUnknown
)

// TypicalTransitions is the New → Booting → Running → Stopping → Stopped lifecycle, with
// Reloading and Error reachable from Running.
var TypicalTransitions = fsm.TypicalTransitions

// Machine is the subset of the go-fsm machine the runnables depend on.
type Machine interface {
	Transition(state string) error
	TransitionBool(state string) bool
	TransitionIfCurrentState(currentState, newState string) error
	SetState(state string) error
	GetState() string

	// GetStateChan emits the state on every change until ctx is canceled.
	GetStateChan(ctx context.Context) <-chan string
}

// New creates a machine in StatusNew using TypicalTransitions.
func New(handler slog.Handler) (Machine, error) {
	m, err := fsm.New(handler, StatusNew, TypicalTransitions)
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	return m, nil
}

// Fail moves m to StatusError, logging rather than returning a failed transition so the caller
// can report the original error.
func Fail(m Machine, logger *slog.Logger) {
	if err := m.Transition(StatusError); err != nil {
		logger.Error("Failed to transition to error state", "error", err)
	}
}

// Shutdown walks m through Stopping to Stopped, skipping Stopping when a Stop call already
// moved it there.
func Shutdown(m Machine) error {
	if m.GetState() != StatusStopping {
		if err := m.Transition(StatusStopping); err != nil {
			return fmt.Errorf("failed to transition to stopping state: %w", err)
		}
	}
	if err := m.Transition(StatusStopped); err != nil {
		return fmt.Errorf("failed to transition to stopped state: %w", err)
	}
	return nil
}

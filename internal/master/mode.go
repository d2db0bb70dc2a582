package master

import (
	"fmt"
	"strings"
)

// Mode selects how the service exchanges facts and catalogs with its caller.
type Mode int

const (
	// ModeRemote callers send encoded facts and receive an encoded catalog.
	ModeRemote Mode = iota
	// ModeLocal callers run in-process and exchange native values.
	ModeLocal
)

func (m Mode) String() string {
	switch m {
	case ModeRemote:
		return "remote"
	case ModeLocal:
		return "local"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode resolves a mode name. An empty name selects ModeRemote.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "remote":
		return ModeRemote, nil
	case "local":
		return ModeLocal, nil
	default:
		return ModeRemote, fmt.Errorf("unknown service mode %q (supported: remote, local)", name)
	}
}

// UseNodes resolves the node-aware evaluation setting: an explicit value wins, otherwise
// remote services are node-aware and local services are not.
func (m Mode) UseNodes(explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	return m != ModeLocal
}

package errz

import (
	"errors"
	"fmt"
	"reflect"
)

// Kind is the closed classification of every error that can leave the interpreter or the
// master service.
type Kind int

const (
	// KindNone is returned for a nil error.
	KindNone Kind = iota
	// KindConfiguration covers missing manifests, parse errors, evaluation errors and
	// invalid requests.
	KindConfiguration
	// KindProtocol covers format negotiation and payload decoding/encoding failures.
	KindProtocol
	// KindInternalDefect covers everything else.
	KindInternalDefect
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfiguration:
		return "configuration"
	case KindProtocol:
		return "protocol"
	case KindInternalDefect:
		return "internal_defect"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var fault *Fault
	if errors.As(err, &fault) {
		return fault.Kind
	}

	switch {
	case errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrDecodeFacts),
		errors.Is(err, ErrEncodeCatalog):
		return KindProtocol
	case IsConfigurationError(err):
		return KindConfiguration
	default:
		return KindInternalDefect
	}
}

// IsConfigurationError reports whether err belongs to the configuration error family, the
// errors that are re-raised as-is by the interpreter rather than wrapped as a defect.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfigurationMissing) ||
		errors.Is(err, ErrManifestParse) ||
		errors.Is(err, ErrEvaluation) ||
		errors.Is(err, ErrInvalidRequest)
}

// NewInternalDefect wraps an unexpected failure, keeping its concrete type name and message.
func NewInternalDefect(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrInternalDefect, typeName(err), err.Error())
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

package errz

import (
	"errors"
	"fmt"
)

// FaultCode is the only numeric fault code produced by the master service.
const FaultCode = 1

// Fault is the single shape of error returned across the service boundary. It erases the
// difference between parse, evaluation and format errors: callers can only read Message.
type Fault struct {
	Code    int
	Message string

	// Kind is kept for the transport layer, which may map it to a wire-level status.
	Kind Kind

	err error
}

// NewFault builds a code 1 fault of the given kind. The cause is kept for errors.Is.
func NewFault(kind Kind, cause error, message string) *Fault {
	return &Fault{
		Code:    FaultCode,
		Message: message,
		Kind:    kind,
		err:     cause,
	}
}

// FaultFromError flattens err into a code 1 fault carrying err's message.
func FaultFromError(err error) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return NewFault(KindOf(err), err, err.Error())
}

// UnsupportedFormatFault is returned when a caller declares a serialization scheme that is not
// supported, at both decode and encode time.
func UnsupportedFormatFault(format string) *Fault {
	return NewFault(
		KindProtocol,
		ErrUnsupportedFormat,
		fmt.Sprintf("Unavailable config format %s", format),
	)
}

// DecodeFactsFault is returned when the facts payload cannot be decoded.
func DecodeFactsFault(cause error) *Fault {
	return NewFault(KindProtocol, errors.Join(ErrDecodeFacts, cause), "Could not rebuild facts")
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault %d: %s", f.Code, f.Message)
}

func (f *Fault) Unwrap() error {
	return f.err
}

package rpcapi

import (
	"context"
	"strconv"

	"github.com/atlanticdynamic/catalogd/internal/errz"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TrailerFaultCode carries errz.FaultCode on every response that failed with a fault.
const TrailerFaultCode = "fault-code"

// FaultCode maps a fault kind to a status code. Protocol faults are the caller's fault;
// everything else is a manifest problem the caller cannot fix by retrying differently.
func FaultCode(kind errz.Kind) codes.Code {
	if kind == errz.KindProtocol {
		return codes.InvalidArgument
	}
	return codes.FailedPrecondition
}

// FaultStatus sets the fault trailer on ctx and returns f as a status error.
func FaultStatus(ctx context.Context, f *errz.Fault) error {
	// SetTrailer only fails outside a server handler, where there is nobody to read it.
	_ = grpc.SetTrailer(ctx, metadata.Pairs(TrailerFaultCode, strconv.Itoa(f.Code)))
	return status.Error(FaultCode(f.Kind), f.Message)
}

// FaultFromStatus turns a failed call back into an *errz.Fault when trailer carries a fault
// code. Any other error is returned unchanged.
func FaultFromStatus(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	values := trailer.Get(TrailerFaultCode)
	if len(values) == 0 {
		return err
	}
	code, convErr := strconv.Atoi(values[0])
	if convErr != nil {
		return err
	}

	st := status.Convert(err)
	kind := errz.KindConfiguration
	if st.Code() == codes.InvalidArgument {
		kind = errz.KindProtocol
	}
	f := errz.NewFault(kind, err, st.Message())
	f.Code = code
	return f
}

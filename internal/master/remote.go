package master

import (
	"context"
	"errors"

	"github.com/atlanticdynamic/catalogd/internal/catalog"
	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/atlanticdynamic/catalogd/internal/format"
	"github.com/atlanticdynamic/catalogd/internal/metrics"
)

var _ ConfigurationService = (*RemoteService)(nil)

// RemoteService serves callers over a transport. Every error it returns is an *errz.Fault with
// code 1.
type RemoteService struct {
	base
}

// NewRemote creates a RemoteService.
func NewRemote(interp Interpreter, opts ...Option) (*RemoteService, error) {
	b, err := newBase("master.Remote", interp, opts)
	if err != nil {
		return nil, err
	}
	return &RemoteService{base: b}, nil
}

// Mode returns ModeRemote.
func (s *RemoteService) Mode() Mode {
	return ModeRemote
}

// GetConfiguration decodes the facts in req.Payload under req.Format, compiles the catalog and
// returns it encoded under the same format.
//
// The format is checked before anything is decoded. Configuration errors are returned as a
// fault carrying the error message. Internal defects are logged and answered with an empty
// payload and no error, so no server internals reach the caller.
func (s *RemoteService) GetConfiguration(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, s.fault(errz.NewFault(errz.KindProtocol, errz.ErrInvalidRequest, "Empty request"))
	}
	logger := s.logger.With("requestID", req.RequestID, "format", req.Format)
	logger.DebugContext(ctx, "Our client is remote")

	scheme, err := format.Parse(req.Format)
	if err != nil {
		logger.WarnContext(ctx, "Rejected request", "error", err)
		return nil, s.fault(errz.UnsupportedFormatFault(req.Format))
	}

	var facts catalog.Facts
	if err := scheme.Decode(req.Payload, &facts); err != nil {
		logger.WarnContext(ctx, "Could not decode facts", "error", err)
		return nil, s.fault(errz.DecodeFactsFault(err))
	}
	if facts == nil {
		facts = catalog.Facts{}
	}

	client, clientIP := identity(req, facts)
	logger = logger.With("client", client, "clientIP", clientIP)

	cat, err := s.interp.Run(client, facts)
	if err != nil {
		if errz.KindOf(err) == errz.KindInternalDefect {
			logger.ErrorContext(ctx, "Internal defect while compiling catalog", "error", err)
			s.metrics.IncrementRequest(ModeRemote.String(), metrics.RequestInternalDefect)
			return &Response{Payload: []byte{}}, nil
		}
		logger.ErrorContext(ctx, "Failed to compile catalog", "error", err)
		return nil, s.fault(errz.FaultFromError(err))
	}

	payload, err := scheme.Encode(cat)
	if err != nil {
		logger.ErrorContext(ctx, "Could not encode catalog", "error", err)
		return nil, s.fault(errz.NewFault(errz.KindProtocol, errors.Join(errz.ErrEncodeCatalog, err), "Could not encode catalog"))
	}

	logger.DebugContext(ctx, "Compiled catalog",
		"resources", len(cat.Resources),
		"classes", len(cat.Classes),
		"bytes", len(payload))
	s.metrics.IncrementRequest(ModeRemote.String(), metrics.RequestSuccess)
	return &Response{Catalog: cat, Payload: payload}, nil
}

func (s *RemoteService) fault(f *errz.Fault) *errz.Fault {
	s.metrics.IncrementRequest(ModeRemote.String(), metrics.RequestFault)
	return f
}

package master

import (
	"context"
	"errors"

	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/atlanticdynamic/catalogd/internal/metrics"
)

var _ ConfigurationService = (*LocalService)(nil)

// LocalService serves in-process callers. Facts are used as given, the catalog is returned
// natively and errors are not flattened.
type LocalService struct {
	base
}

// NewLocal creates a LocalService.
func NewLocal(interp Interpreter, opts ...Option) (*LocalService, error) {
	b, err := newBase("master.Local", interp, opts)
	if err != nil {
		return nil, err
	}
	return &LocalService{base: b}, nil
}

// Mode returns ModeLocal.
func (s *LocalService) Mode() Mode {
	return ModeLocal
}

// GetConfiguration compiles the catalog for the request's facts.
func (s *LocalService) GetConfiguration(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("request is required")
	}
	client, clientIP := identity(req, req.Facts)
	logger := s.logger.With("client", client, "clientIP", clientIP)
	logger.DebugContext(ctx, "Our client is local")

	cat, err := s.interp.Run(client, req.Facts)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to compile catalog", "error", err)
		outcome := metrics.RequestFault
		if errz.KindOf(err) == errz.KindInternalDefect {
			outcome = metrics.RequestInternalDefect
		}
		s.metrics.IncrementRequest(ModeLocal.String(), outcome)
		return nil, err
	}

	s.metrics.IncrementRequest(ModeLocal.String(), metrics.RequestSuccess)
	return &Response{Catalog: cat}, nil
}

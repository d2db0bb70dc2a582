package masterrpc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/atlanticdynamic/catalogd/internal/master"
	"github.com/atlanticdynamic/catalogd/internal/rpcapi"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ rpcapi.MasterServer = (*Service)(nil)

// ErrLocalService is returned when a local mode service is put behind the gRPC transport,
// which can only carry encoded payloads.
var ErrLocalService = errors.New("gRPC transport requires a remote mode service")

// Service adapts a remote master.ConfigurationService to the gRPC API.
type Service struct {
	svc    master.ConfigurationService
	logger *slog.Logger
}

// NewService wraps svc, which must be in remote mode.
func NewService(svc master.ConfigurationService, logger *slog.Logger) (*Service, error) {
	if svc == nil {
		return nil, errors.New("configuration service is required")
	}
	if svc.Mode() != master.ModeRemote {
		return nil, ErrLocalService
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{svc: svc, logger: logger.WithGroup("masterrpc.Service")}, nil
}

func (s *Service) Freshness(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	return wrapperspb.Int64(s.svc.Freshness()), nil
}

// GetConfiguration reads the format and client identity from the request metadata. Faults are
// returned as status errors with a fault-code trailer.
func (s *Service) GetConfiguration(
	ctx context.Context,
	in *wrapperspb.BytesValue,
) (*wrapperspb.BytesValue, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	req := &master.Request{
		Payload:   in.GetValue(),
		Format:    firstValue(md, rpcapi.MetadataFormat),
		Client:    firstValue(md, rpcapi.MetadataClient),
		ClientIP:  firstValue(md, rpcapi.MetadataClientAddress),
		RequestID: ExtractRequestID(ctx),
	}

	resp, err := s.svc.GetConfiguration(ctx, req)
	if err != nil {
		f := errz.FaultFromError(err)
		s.logger.Debug("Configuration request failed",
			"requestID", req.RequestID,
			"client", req.Client,
			"kind", f.Kind,
			"error", f.Message)
		return nil, rpcapi.FaultStatus(ctx, f)
	}
	return wrapperspb.Bytes(resp.Payload), nil
}

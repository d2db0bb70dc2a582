// Package rpcapi describes the catalogd.v1.MasterService gRPC service: the service descriptor,
// a typed client, and the metadata conventions shared by the server and the client.
//
// Messages are protobuf well-known types, so no generated code is needed: Freshness takes
// google.protobuf.Empty and returns google.protobuf.Int64Value, GetConfiguration takes the
// encoded facts as google.protobuf.BytesValue and returns the encoded catalog the same way.
package rpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName            = "catalogd.v1.MasterService"
	FreshnessMethod        = "/" + ServiceName + "/Freshness"
	GetConfigurationMethod = "/" + ServiceName + "/GetConfiguration"
)

// Request metadata keys.
const (
	MetadataFormat        = "x-catalog-format"
	MetadataClient        = "x-client-name"
	MetadataClientAddress = "x-client-address"
	MetadataRequestID     = "request-id"
)

// MasterServer is the server API for the master service.
type MasterServer interface {
	Freshness(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	GetConfiguration(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// RegisterMasterServer registers srv on s.
func RegisterMasterServer(s grpc.ServiceRegistrar, srv MasterServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc for the master service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MasterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Freshness", Handler: freshnessHandler},
		{MethodName: "GetConfiguration", Handler: getConfigurationHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalogd/v1/master.proto",
}

func freshnessHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MasterServer).Freshness(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FreshnessMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MasterServer).Freshness(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getConfigurationHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MasterServer).GetConfiguration(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetConfigurationMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MasterServer).GetConfiguration(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// MasterClient is the typed client for the master service.
type MasterClient struct {
	cc grpc.ClientConnInterface
}

func NewMasterClient(cc grpc.ClientConnInterface) *MasterClient {
	return &MasterClient{cc: cc}
}

func (c *MasterClient) Freshness(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*wrapperspb.Int64Value, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, FreshnessMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MasterClient) GetConfiguration(
	ctx context.Context,
	in *wrapperspb.BytesValue,
	opts ...grpc.CallOption,
) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, GetConfigurationMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

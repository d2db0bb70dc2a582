package masterrpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/atlanticdynamic/catalogd/internal/catalog"
	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/atlanticdynamic/catalogd/internal/format"
	"github.com/atlanticdynamic/catalogd/internal/interpreter"
	"github.com/atlanticdynamic/catalogd/internal/master"
	"github.com/atlanticdynamic/catalogd/internal/rpcapi"
	"github.com/atlanticdynamic/catalogd/internal/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// newSiteService returns a remote service over the shared site manifest, or over an empty
// filesystem when withManifest is false.
func newSiteService(t *testing.T, withManifest bool) master.ConfigurationService {
	t.Helper()
	fsys := afero.NewMemMapFs()
	root := "/etc/catalogd/site.toml"
	if withManifest {
		root = testutil.WriteSiteManifest(t, fsys, "/etc/catalogd")
	}
	interp, err := interpreter.New(root, interpreter.WithFs(fsys), interpreter.WithLogger(discard))
	require.NoError(t, err)
	svc, err := master.NewRemote(interp, master.WithLogger(discard))
	require.NoError(t, err)
	return svc
}

func dialService(t *testing.T, svc master.ConfigurationService) *rpcapi.MasterClient {
	t.Helper()
	service, err := NewService(svc, discard)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	rpcapi.RegisterMasterServer(srv, service)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return rpcapi.NewMasterClient(conn)
}

func outgoing(t *testing.T, kv ...string) context.Context {
	t.Helper()
	return metadata.AppendToOutgoingContext(t.Context(), kv...)
}

func TestNewService(t *testing.T) {
	t.Parallel()
	interp, err := interpreter.New("/etc/catalogd/site.toml", interpreter.WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)

	local, err := master.NewLocal(interp)
	require.NoError(t, err)
	_, err = NewService(local, nil)
	assert.ErrorIs(t, err, ErrLocalService)

	_, err = NewService(nil, nil)
	assert.Error(t, err)
}

func TestService_Freshness(t *testing.T) {
	t.Parallel()
	svc := newSiteService(t, true)
	client := dialService(t, svc)

	fresh, err := client.Freshness(t.Context(), &emptypb.Empty{})
	require.NoError(t, err)
	assert.Zero(t, fresh.GetValue(), "nothing compiled yet")

	facts, err := format.SchemeJSON.Encode(catalog.Facts{"hostname": "db1"})
	require.NoError(t, err)
	_, err = client.GetConfiguration(outgoing(t, rpcapi.MetadataFormat, "json"), wrapperspb.Bytes(facts))
	require.NoError(t, err)

	fresh, err = client.Freshness(t.Context(), &emptypb.Empty{})
	require.NoError(t, err)
	assert.Positive(t, fresh.GetValue())
	assert.Equal(t, svc.Freshness(), fresh.GetValue())
}

func TestService_GetConfiguration(t *testing.T) {
	t.Parallel()
	client := dialService(t, newSiteService(t, true))

	for _, scheme := range []format.Scheme{format.SchemeYAML, format.SchemeCBOR, format.SchemeJSON} {
		t.Run(scheme.String(), func(t *testing.T) {
			facts, err := scheme.Encode(catalog.Facts{"hostname": "web1", "ipaddress": "10.0.0.5"})
			require.NoError(t, err)

			ctx := outgoing(t,
				rpcapi.MetadataFormat, scheme.String(),
				rpcapi.MetadataClient, "web1.example.org",
				rpcapi.MetadataRequestID, "req-1")
			out, err := client.GetConfiguration(ctx, wrapperspb.Bytes(facts))
			require.NoError(t, err)

			var cat catalog.Catalog
			require.NoError(t, scheme.Decode(out.GetValue(), &cat))
			assert.Equal(t, "web1.example.org", cat.Name)
			assert.Equal(t, []string{"base", "ntp", "webserver"}, cat.Classes)
			svc, ok := cat.Resource("service", "nginx")
			require.True(t, ok)
			assert.Equal(t, "10.0.0.5:80", svc.Params["listen"])
		})
	}
}

func TestService_Faults(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		manifest bool
		format   string
		payload  []byte
		code     codes.Code
		message  string
	}{
		{
			name:     "unsupported format",
			manifest: true,
			format:   "marshal",
			payload:  []byte("{}"),
			code:     codes.InvalidArgument,
			message:  "Unavailable config format marshal",
		},
		{
			name:     "undecodable facts",
			manifest: true,
			format:   "json",
			payload:  []byte("{not json"),
			code:     codes.InvalidArgument,
			message:  "Could not rebuild facts",
		},
		{
			name:     "missing manifest",
			manifest: false,
			format:   "json",
			payload:  []byte(`{"hostname":"web1"}`),
			code:     codes.FailedPrecondition,
			message:  "manifest must exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := dialService(t, newSiteService(t, tt.manifest))

			var trailer metadata.MD
			_, err := client.GetConfiguration(
				outgoing(t, rpcapi.MetadataFormat, tt.format),
				wrapperspb.Bytes(tt.payload),
				grpc.Trailer(&trailer),
			)
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
			assert.Contains(t, status.Convert(err).Message(), tt.message)
			assert.Equal(t, []string{"1"}, trailer.Get(rpcapi.TrailerFaultCode))

			var f *errz.Fault
			require.ErrorAs(t, rpcapi.FaultFromStatus(err, trailer), &f)
			assert.Equal(t, errz.FaultCode, f.Code)
		})
	}
}

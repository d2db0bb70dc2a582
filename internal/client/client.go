// Package client talks to a catalogd server over gRPC.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/atlanticdynamic/catalogd/internal/catalog"
	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/atlanticdynamic/catalogd/internal/format"
	"github.com/atlanticdynamic/catalogd/internal/rpcapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client requests freshness and catalogs from a catalogd server.
type Client struct {
	logger      *slog.Logger
	serverAddr  string
	dialOptions []grpc.DialOption
}

// Config holds configuration options for creating a Client
type Config struct {
	Logger     *slog.Logger
	ServerAddr string

	// DialOptions replace the default insecure transport credentials.
	DialOptions []grpc.DialOption
}

// New creates a new client instance
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialOptions := cfg.DialOptions
	if len(dialOptions) == 0 {
		dialOptions = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &Client{
		logger:      logger.WithGroup("client"),
		serverAddr:  cfg.ServerAddr,
		dialOptions: dialOptions,
	}
}

// Freshness returns the time of the server's last successful compile, or the zero time if
// the server has not compiled a manifest yet.
func (c *Client) Freshness(ctx context.Context) (time.Time, error) {
	conn, err := c.connect()
	if err != nil {
		return time.Time{}, err
	}
	defer c.close(conn)

	out, err := rpcapi.NewMasterClient(conn).Freshness(ctx, &emptypb.Empty{})
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if out.GetValue() == 0 {
		return time.Time{}, nil
	}
	return time.Unix(out.GetValue(), 0), nil
}

// GetConfiguration sends facts encoded under formatName and decodes the returned catalog.
// clientName may be empty, in which case the server uses the hostname fact. Server faults are
// returned as *errz.Fault.
func (c *Client) GetConfiguration(
	ctx context.Context,
	facts catalog.Facts,
	formatName string,
	clientName string,
) (*catalog.Catalog, error) {
	scheme, err := format.Parse(formatName)
	if err != nil {
		return nil, errz.UnsupportedFormatFault(formatName)
	}
	payload, err := scheme.Encode(facts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode facts: %w", err)
	}

	conn, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer c.close(conn)

	md := []string{rpcapi.MetadataFormat, scheme.String()}
	if clientName != "" {
		md = append(md, rpcapi.MetadataClient, clientName)
	}
	if ip := facts.IPAddress(); ip != "" {
		md = append(md, rpcapi.MetadataClientAddress, ip)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, md...)

	c.logger.Debug("Requesting catalog", "server", c.serverAddr, "format", scheme, "client", clientName)
	var trailer metadata.MD
	out, err := rpcapi.NewMasterClient(conn).GetConfiguration(ctx, wrapperspb.Bytes(payload), grpc.Trailer(&trailer))
	if err != nil {
		return nil, rpcapi.FaultFromStatus(err, trailer)
	}
	if len(out.GetValue()) == 0 {
		return nil, ErrEmptyCatalog
	}

	var cat catalog.Catalog
	if err := scheme.Decode(out.GetValue(), &cat); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return &cat, nil
}

func (c *Client) connect() (*grpc.ClientConn, error) {
	target, err := Target(c.serverAddr)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Connecting to server", "target", target)
	conn, err := grpc.NewClient(target, c.dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return conn, nil
}

func (c *Client) close(conn *grpc.ClientConn) {
	if err := conn.Close(); err != nil {
		c.logger.Error("Failed to close connection", "error", err)
	}
}

// Target converts a server address in the same forms the server listens on into a gRPC
// dial target: "tcp://host:port", "host:port", "unix:///path" or "unix:/path".
func Target(serverAddr string) (string, error) {
	addr := serverAddr
	if !strings.Contains(addr, "://") {
		if path, ok := strings.CutPrefix(addr, "unix:"); ok {
			addr = "unix://" + path
		} else {
			addr = "tcp://" + addr
		}
	}

	network, address, ok := strings.Cut(addr, "://")
	if !ok || address == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddressFormat, serverAddr)
	}

	switch network {
	case "tcp":
		host, port, err := net.SplitHostPort(address)
		if err != nil || port == "" {
			return "", fmt.Errorf("%w: %s", ErrInvalidTCPFormat, serverAddr)
		}
		if host == "" {
			host = "localhost"
		}
		return net.JoinHostPort(host, port), nil
	case "unix":
		if !strings.HasPrefix(address, "/") {
			return "", fmt.Errorf("%w: %s", ErrInvalidAddressFormat, serverAddr)
		}
		return "unix://" + address, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedNetwork, network)
	}
}

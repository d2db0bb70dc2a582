// Package master is the service facade in front of the interpreter. It answers freshness
// queries and configuration requests, in one of two modes fixed at construction: a remote
// service decodes facts and encodes catalogs under the caller's declared format and flattens
// errors into protocol faults, a local service exchanges native values and returns errors as-is.
package master

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/catalogd/internal/catalog"
	"github.com/atlanticdynamic/catalogd/internal/metrics"
)

// Interpreter compiles catalogs. *interpreter.Interpreter satisfies it.
type Interpreter interface {
	Freshness() int64
	Run(client string, facts catalog.Facts) (*catalog.Catalog, error)
}

// CertificateAuthority is an optional collaborator held by the service for transports that
// issue client certificates. The service itself never calls it.
type CertificateAuthority interface {
	// Certificate returns the PEM encoded CA certificate.
	Certificate() ([]byte, error)
}

// Request is a configuration request. Remote services read Payload and Format, local services
// read Facts. Client and ClientIP default to the "hostname" and "ipaddress" facts.
type Request struct {
	Facts     catalog.Facts
	Payload   []byte
	Format    string
	Client    string
	ClientIP  string
	RequestID string
}

// Response carries the catalog natively (local) or encoded under the request format (remote).
type Response struct {
	Catalog *catalog.Catalog
	Payload []byte
}

// ConfigurationService is the capability exposed to transports.
type ConfigurationService interface {
	Mode() Mode
	// Freshness returns the time of the last successful compile as Unix seconds, 0 if none.
	Freshness() int64
	GetConfiguration(ctx context.Context, req *Request) (*Response, error)
}

// base holds what both service implementations share.
type base struct {
	interp  Interpreter
	ca      CertificateAuthority
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a service.
type Option func(*base)

// WithLogger sets a custom logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the service.
func WithLogHandler(handler slog.Handler) Option {
	return func(b *base) {
		b.logger = slog.New(handler)
	}
}

// WithCA attaches a certificate authority.
func WithCA(ca CertificateAuthority) Option {
	return func(b *base) {
		b.ca = ca
	}
}

// WithMetrics enables request metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) {
		b.metrics = m
	}
}

func newBase(group string, interp Interpreter, opts []Option) (base, error) {
	b := base{logger: slog.Default()}
	for _, opt := range opts {
		opt(&b)
	}
	if interp == nil {
		return base{}, fmt.Errorf("%s: interpreter is required", group)
	}
	b.interp = interp
	b.logger = b.logger.WithGroup(group)
	return b, nil
}

// Freshness never fails; it is 0 until the first successful compile.
func (b *base) Freshness() int64 {
	return b.interp.Freshness()
}

// CA returns the certificate authority, or nil when none was configured.
func (b *base) CA() CertificateAuthority {
	return b.ca
}

// identity resolves the client name and address, falling back to the facts.
func identity(req *Request, facts catalog.Facts) (string, string) {
	client, clientIP := req.Client, req.ClientIP
	if client == "" {
		client = facts.Hostname()
		if clientIP == "" {
			clientIP = facts.IPAddress()
		}
	}
	return client, clientIP
}

// New selects the service implementation for mode.
func New(mode Mode, interp Interpreter, opts ...Option) (ConfigurationService, error) {
	switch mode {
	case ModeLocal:
		return NewLocal(interp, opts...)
	case ModeRemote:
		return NewRemote(interp, opts...)
	default:
		return nil, fmt.Errorf("unknown service mode %s", mode)
	}
}

package masterrpc

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/metadata"
)

// ExtractRequestID returns the caller's request id from the incoming metadata, or a new
// UUIDv6 when there is none.
func ExtractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for _, key := range []string{"request-id", "x-request-id", "requestid"} {
			if values := md.Get(key); len(values) > 0 && values[0] != "" {
				return values[0]
			}
		}
	}
	return uuid.Must(uuid.NewV6()).String()
}

// withRequestID makes sure the incoming metadata carries a request id, so the id logged by the
// transport matches the one the handler sees.
func withRequestID(ctx context.Context) (context.Context, string) {
	id := ExtractRequestID(ctx)
	md, _ := metadata.FromIncomingContext(ctx)
	if firstValue(md, "request-id") == id {
		return ctx, id
	}
	md = md.Copy()
	md.Set("request-id", id)
	return metadata.NewIncomingContext(ctx, md), id
}

// firstValue returns the first value of key in the incoming metadata.
func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

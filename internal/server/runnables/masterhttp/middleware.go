package masterhttp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-supervisor/runnables/httpserver"
)

// HeaderRequestID carries the request id on requests and responses.
const HeaderRequestID = "X-Request-Id"

// requestID makes sure every request carries an X-Request-Id, generating one when the
// client sent none, and echoes it on the response.
func requestID() httpserver.HandlerFunc {
	return func(rp *httpserver.RequestProcessor) {
		r := rp.Request()
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.Must(uuid.NewV6()).String()
			r.Header.Set(HeaderRequestID, id)
		}
		rp.Writer().Header().Set(HeaderRequestID, id)
		rp.Next()
	}
}

// accessLog writes one log line per request. Client errors log at warn, server errors at error.
func accessLog(logger *slog.Logger) httpserver.HandlerFunc {
	return func(rp *httpserver.RequestProcessor) {
		start := time.Now()
		rp.Next()

		r := rp.Request()
		status := rp.Writer().Status()
		if status == 0 {
			status = http.StatusOK
		}

		level := slog.LevelDebug
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		logger.LogAttrs(r.Context(), level, "HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int("size", rp.Writer().Size()),
			slog.Duration("duration", time.Since(start)),
			slog.String("requestID", r.Header.Get(HeaderRequestID)),
		)
	}
}

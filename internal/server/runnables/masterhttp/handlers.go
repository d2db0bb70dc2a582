package masterhttp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/atlanticdynamic/catalogd/internal/format"
	"github.com/atlanticdynamic/catalogd/internal/master"
	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robbyt/go-supervisor/runnables/httpserver"
)

// MaxFactsBytes bounds the size of a configuration request body.
const MaxFactsBytes = 8 << 20

const (
	PathFreshness     = "/freshness"
	PathConfiguration = "/configuration"
	PathMetrics       = "/metrics"
)

// faultBody is the JSON body of a 400 response.
type faultBody struct {
	FaultCode   int    `json:"faultCode"`
	FaultString string `json:"faultString"`
}

// Handlers serves the master service over plain HTTP.
type Handlers struct {
	svc      master.ConfigurationService
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewHandlers wraps svc, which must be in remote mode. A nil gatherer leaves /metrics out of
// the routes.
func NewHandlers(
	svc master.ConfigurationService,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) (*Handlers, error) {
	if svc == nil {
		return nil, errors.New("configuration service is required")
	}
	if svc.Mode() != master.ModeRemote {
		return nil, errors.New("HTTP transport requires a remote mode service")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, gatherer: gatherer, logger: logger.WithGroup("masterhttp.Handlers")}, nil
}

type routeSpec struct {
	name string
	path string
	fn   http.HandlerFunc
}

// Routes returns the routes for the go-supervisor HTTP server.
func (h *Handlers) Routes() ([]httpserver.Route, error) {
	specs := []routeSpec{
		{name: "freshness", path: PathFreshness, fn: h.Freshness},
		{name: "configuration", path: PathConfiguration, fn: h.Configuration},
	}
	if h.gatherer != nil {
		metricsHandler := promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})
		specs = append(specs, routeSpec{name: "metrics", path: PathMetrics, fn: metricsHandler.ServeHTTP})
	}

	routes := make([]httpserver.Route, 0, len(specs))
	for _, rs := range specs {
		route, err := httpserver.NewRouteFromHandlerFunc(rs.name, rs.path, rs.fn,
			requestID(), accessLog(h.logger))
		if err != nil {
			return nil, err
		}
		routes = append(routes, *route)
	}
	return routes, nil
}

// Freshness answers GET /freshness with the last compile time as decimal Unix seconds.
func (h *Handlers) Freshness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, strconv.FormatInt(h.svc.Freshness(), 10))
}

// Configuration answers POST /configuration?format=&client=&clientip= where the body holds the
// encoded facts. The catalog is returned encoded under the same format.
func (h *Handlers) Configuration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.Must(uuid.NewV6()).String()
		w.Header().Set(HeaderRequestID, requestID)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxFactsBytes))
	if err != nil {
		h.logger.Warn("Could not read request body", "requestID", requestID, "error", err)
		writeFault(w, errz.DecodeFactsFault(err))
		return
	}

	query := r.URL.Query()
	req := &master.Request{
		Payload:   body,
		Format:    query.Get("format"),
		Client:    query.Get("client"),
		ClientIP:  query.Get("clientip"),
		RequestID: requestID,
	}

	resp, err := h.svc.GetConfiguration(r.Context(), req)
	if err != nil {
		writeFault(w, errz.FaultFromError(err))
		return
	}

	// The format was accepted by the service, so Parse cannot fail here.
	scheme, _ := format.Parse(req.Format)
	w.Header().Set("Content-Type", scheme.ContentType())
	_, _ = w.Write(resp.Payload)
}

func writeFault(w http.ResponseWriter, f *errz.Fault) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(faultBody{FaultCode: f.Code, FaultString: f.Message})
}

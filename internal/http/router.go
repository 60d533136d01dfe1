package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/internal/service/registration"
)

// Registration is the registration workflow served over HTTP.
type Registration interface {
	RequestCreation(ctx context.Context, in registration.RegistrationInput) (*registration.Staged, error)
	ConfirmCreation(ctx context.Context, token string) (*domain.ProvisionResult, error)
	Sweep(ctx context.Context) (int, error)
	PendingCount(ctx context.Context) (int, error)
}

// Geocoder resolves coordinates for the map widget.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) domain.Address
}

// HealthCheck checks one dependency for /healthz.
type HealthCheck struct {
	Name  string
	Check func(context.Context) error
}

// Options configures a Router.
type Options struct {
	AppName     string
	LoginURL    string
	AdminSecret string
	Limiter     RateLimiter
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
	Health      []HealthCheck

	// TrustedProxies are peers whose X-Forwarded-For is believed.
	TrustedProxies []netip.Prefix
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	registration Registration
	geocoder     Geocoder
	limiter      RateLimiter
	pages        pageRenderer
	adminSecret  string
	health       []HealthCheck
	registerer   prometheus.Registerer
	gatherer     prometheus.Gatherer

	trustedProxies []netip.Prefix

	metricsOnce          sync.Once
	metricsInitialized   bool
	requestTotal         *prometheus.CounterVec
	requestLatency       *prometheus.HistogramVec
	rateLimitHits        *prometheus.CounterVec
	registrationOutcomes *prometheus.CounterVec
}

const (
	maxRequestBodyBytes = 1 << 20
	healthCheckTimeout  = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, registrationSvc Registration, geocoder Geocoder, opts Options) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:          http.NewServeMux(),
		logger:       logger,
		registration: registrationSvc,
		geocoder:     geocoder,
		limiter:      opts.Limiter,
		pages:        pageRenderer{appName: opts.AppName, loginURL: opts.LoginURL},
		adminSecret:  strings.TrimSpace(opts.AdminSecret),
		health:       opts.Health,
		registerer:   opts.Registerer,
		gatherer:     opts.Gatherer,

		trustedProxies: opts.TrustedProxies,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.registerer == nil {
		r.registerer = prometheus.DefaultRegisterer
	}
	if r.gatherer == nil {
		r.gatherer = prometheus.DefaultGatherer
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	r.mux.HandleFunc("/api/request-creation", r.audit("/api/request-creation",
		r.limited(ruleRequestIP, nil, r.handleRequestCreation)))
	r.mux.HandleFunc("/api/confirm-creation", r.audit("/api/confirm-creation",
		r.limited(ruleConfirm, nil, r.handleConfirmCreation)))
	r.mux.HandleFunc("/api/reverse-geocode", r.audit("/api/reverse-geocode",
		r.limited(ruleGeocode, nil, r.handleReverseGeocode)))
	r.mux.HandleFunc("/api/admin/pending", r.audit("/api/admin/pending",
		r.requireAdmin(r.limited(ruleAdmin, rateLimitKeyAdmin, r.handlePendingStats))))
	r.mux.HandleFunc("/api/admin/pending/sweep", r.audit("/api/admin/pending/sweep",
		r.requireAdmin(r.limited(ruleAdmin, rateLimitKeyAdmin, r.handlePendingSweep))))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	for _, hc := range r.health {
		if hc.Check == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		err := hc.Check(ctx)
		cancel()
		if err != nil {
			status = "degraded"
			components[hc.Name] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
			continue
		}
		components[hc.Name] = map[string]any{"status": "up"}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		reqID := strings.TrimSpace(req.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
			"request_id", reqID,
		}
		if ip := r.clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "admin"
			fields = append(fields, "subject", info.Subject)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func rateLimitKeyAdmin(req *http.Request) string {
	if info, ok := authInfoFromContext(req.Context()); ok && info.Subject != "" {
		return "admin:" + info.Subject
	}
	return ""
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

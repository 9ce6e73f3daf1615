// Package hc2gateway is the long-lived HTTP front door for one instance: it
// serves the materialized profile view, liveness, and reverse-proxies
// everything else to the registry.
package hc2gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hc2-project/hc2/pkg/contextx"
	"github.com/hc2-project/hc2/pkg/hc2types"
)

// ProfileSource supplies the flattened profile list. pkg/hc2propagator.Propagator
// satisfies this.
type ProfileSource interface {
	Profiles() []hc2types.ServiceProfile
}

// Pinger reports whether the instance's backing stores are reachable.
// pkg/redis.Provider satisfies this.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Gateway is the instance's HTTP front door.
type Gateway struct {
	profiles ProfileSource
	pinger   Pinger
	log      *zap.Logger
	mux      *http.ServeMux
	proxy    *httputil.ReverseProxy

	requests *prometheus.CounterVec
	registry *prometheus.Registry
}

// New builds a Gateway that serves profiles from profiles and
// reverse-proxies unmatched requests to registryURL. pinger may be nil, in
// which case /health only reports process liveness.
func New(profiles ProfileSource, pinger Pinger, registryURL string, log *zap.Logger) (*Gateway, error) {
	if log == nil {
		log = zap.NewNop()
	}
	target, err := url.Parse(registryURL)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hc2_gateway_requests_total", Help: "Total HTTP requests handled by the gateway."},
		[]string{"path", "status"},
	)
	registry.MustRegister(requests)

	g := &Gateway{
		profiles: profiles,
		pinger:   pinger,
		log:      log.With(zap.String("module", "hc2gateway")),
		mux:      http.NewServeMux(),
		proxy:    httputil.NewSingleHostReverseProxy(target),
		requests: requests,
		registry: registry,
	}

	g.mux.HandleFunc("/health", g.handleHealth)
	g.mux.HandleFunc("/api/v1/profiles", g.handleProfiles)
	g.mux.HandleFunc("/", g.handleProxy)

	return g, nil
}

// Handler returns the gateway's HTTP handler, wrapped with request logging
// and id tagging.
func (g *Gateway) Handler() http.Handler {
	return g.withLogging(g.mux)
}

// MetricsHandler returns the promhttp handler, meant to be mounted on a
// separate metrics listener.
func (g *Gateway) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if g.pinger != nil {
		if err := g.pinger.Ping(r.Context()); err != nil {
			g.log.Warn("health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (g *Gateway) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(g.profiles.Profiles())
}

func (g *Gateway) handleProxy(w http.ResponseWriter, r *http.Request) {
	g.proxy.ServeHTTP(w, r)
}

// withLogging tags every request with a request id and logs its outcome,
// mirroring the instance's zap-based request logging convention.
func (g *Gateway) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		r.Header.Set("X-Request-Id", reqID)
		ctx := contextx.WithRequestID(r.Context(), reqID)
		ctx = contextx.WithLogger(ctx, g.log)
		next.ServeHTTP(rw, r.WithContext(ctx))

		g.requests.WithLabelValues(r.URL.Path, http.StatusText(rw.status)).Inc()
		g.log.Info("request",
			zap.String("requestId", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

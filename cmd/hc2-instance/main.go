// Command hc2-instance runs one hc2 control-plane instance: it issues its
// own certificate, hosts the Service Registry's HTTP surface, runs the
// Change Propagator against the durable store, serves the Gateway, and
// boots a Sandbox Container with the demonstration modules registered.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/hc2-project/hc2/internal/config"
	"github.com/hc2-project/hc2/internal/hc2demo"
	"github.com/hc2-project/hc2/internal/hc2gateway"
	"github.com/hc2-project/hc2/pkg/contextx"
	"github.com/hc2-project/hc2/pkg/hc2ca"
	"github.com/hc2-project/hc2/pkg/hc2problem"
	"github.com/hc2-project/hc2/pkg/hc2propagator"
	"github.com/hc2-project/hc2/pkg/hc2registry"
	"github.com/hc2-project/hc2/pkg/hc2sandbox"
	"github.com/hc2-project/hc2/pkg/hc2store"
	"github.com/hc2-project/hc2/pkg/hc2types"
	"github.com/hc2-project/hc2/pkg/lifecycle"
	hc2logger "github.com/hc2-project/hc2/pkg/logger"
	hc2redis "github.com/hc2-project/hc2/pkg/redis"
	hc2utils "github.com/hc2-project/hc2/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("hc2-instance: %v", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	lg, err := hc2logger.New(hc2logger.Config{
		Environment: cfg.AppEnv,
		LogLevel:    cfg.LogLevel,
		ServiceName: cfg.AppName,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer lg.Sync() //nolint:errcheck
	log := lg.GetZapLogger()

	color.Cyan("hc2-instance starting: instance=%s service=%s", cfg.InstanceID, cfg.ServiceName)

	redisProvider := hc2redis.NewProvider(log)
	redisProvider.RegisterCache("registry", &hc2redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
		MaxRetries:   cfg.RedisMaxRetries,
		Namespace:    "hc2",
		Context:      "registry",
	})
	cache, err := redisProvider.GetCache("registry")
	if err != nil {
		return fmt.Errorf("failed to connect to durable store: %w", err)
	}
	defer redisProvider.Close() //nolint:errcheck

	ca, err := hc2ca.New(log)
	if err != nil {
		return fmt.Errorf("failed to start certificate authority: %w", err)
	}

	store := hc2store.New(cache, log)
	registry := hc2registry.New(store, log)
	propagator := hc2propagator.New(store, cfg.InstanceID, log)

	sandbox := hc2sandbox.New(log)
	sandbox.Register("noop", hc2demo.NewNOOPService, hc2sandbox.Policy{}, true)
	sandbox.Register("cache", hc2demo.NewCacheServiceFactory(cache), hc2sandbox.Policy{}, true)
	sandbox.Register("feed", hc2demo.NewFeedServiceFactory(cache),
		hc2sandbox.Policy{AllowedAPIs: map[string]bool{"cache": true}}, true)
	sandbox.Start()

	gateway, err := hc2gateway.New(propagator, redisProvider, "http://localhost:"+cfg.AppPort, log)
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	app := lifecycle.NewApplication(cfg.AppName, log)

	app.RegisterService("propagator").
		WithStart(func(ctx context.Context) error {
			go func() {
				if err := propagator.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error("propagator exited", zap.Error(err))
				}
			}()
			return nil
		})

	registryMux := newRegistryHandler(ca, registry, cfg.InstanceID, log)
	registrySrv := &http.Server{Addr: ":" + cfg.AppPort, Handler: registryMux}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: gateway.MetricsHandler()}
	gatewaySrv := &http.Server{Addr: ":8090", Handler: gateway.Handler()}

	app.RegisterService("registry-http").
		WithStart(func(ctx context.Context) error {
			go func() {
				if err := registrySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("registry http server exited", zap.Error(err))
				}
			}()
			return nil
		}).
		WithStop(func(ctx context.Context) error { return registrySrv.Shutdown(ctx) })

	app.RegisterService("gateway-http").
		WithStart(func(ctx context.Context) error {
			go func() {
				if err := gatewaySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("gateway http server exited", zap.Error(err))
				}
			}()
			return nil
		}).
		WithStop(func(ctx context.Context) error { return gatewaySrv.Shutdown(ctx) })

	app.RegisterService("metrics-http").
		WithStart(func(ctx context.Context) error {
			go func() {
				if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics http server exited", zap.Error(err))
				}
			}()
			return nil
		}).
		WithStop(func(ctx context.Context) error { return metricsSrv.Shutdown(ctx) })

	color.Green("hc2-instance ready: registry=:%s gateway=:8090 metrics=:%s", cfg.AppPort, cfg.MetricsPort)
	return app.Run()
}

// newRegistryHandler wires the CA/Registry HTTP surface: certificate
// issuance, certificate verification, and service registration.
func newRegistryHandler(ca *hc2ca.CA, registry *hc2registry.Registry, instanceID string, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/certs", func(w http.ResponseWriter, r *http.Request) {
		var req hc2types.CertificateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			hc2problem.New(http.StatusBadRequest, hc2problem.TypeCertClaimsInvalid, "malformed request body", err.Error(), r.URL.Path).Write(w, contextx.Logger(r.Context()))
			return
		}
		cert, err := ca.GenerateCertificate(req, instanceID)
		if err != nil {
			hc2problem.Internal(r.URL.Path, err.Error()).Write(w, contextx.Logger(r.Context()))
			return
		}
		w.Header().Set("X-HC2-Resource", fmt.Sprintf("urn:hcp:cert:%s", cert.Payload.Metadata.CertificateID))
		writeJSON(w, http.StatusCreated, cert)
	})

	mux.HandleFunc("POST /api/v1/certs/{id}/verify", func(w http.ResponseWriter, r *http.Request) {
		var cert hc2types.ServiceCertificate
		if err := json.NewDecoder(r.Body).Decode(&cert); err != nil {
			hc2problem.New(http.StatusBadRequest, hc2problem.TypeCertClaimsInvalid, "malformed request body", err.Error(), r.URL.Path).Write(w, contextx.Logger(r.Context()))
			return
		}
		if cert.Payload.Metadata.CertificateID != r.PathValue("id") {
			hc2problem.CertClaimsInvalid(r.URL.Path, "certificate id does not match path").Write(w, contextx.Logger(r.Context()))
			return
		}
		if err := ca.VerifyCertificate(cert); err != nil {
			hc2problem.CertInvalid(r.URL.Path, err.Error()).Write(w, contextx.Logger(r.Context()))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/v1/services", func(w http.ResponseWriter, r *http.Request) {
		var signed hc2types.SignedRegistration
		if err := json.NewDecoder(r.Body).Decode(&signed); err != nil {
			hc2problem.New(http.StatusBadRequest, hc2problem.TypeCertClaimsInvalid, "malformed request body", err.Error(), r.URL.Path).Write(w, contextx.Logger(r.Context()))
			return
		}

		certBytes, err := decodeCertificateB64(signed.Payload.HC2ServiceCertificateB64)
		if err != nil {
			hc2problem.CertClaimsInvalid(r.URL.Path, err.Error()).Write(w, contextx.Logger(r.Context()))
			return
		}
		var cert hc2types.ServiceCertificate
		if err := json.Unmarshal(certBytes, &cert); err != nil {
			hc2problem.CertClaimsInvalid(r.URL.Path, "embedded certificate is malformed").Write(w, contextx.Logger(r.Context()))
			return
		}
		if err := ca.VerifyCertificate(cert); err != nil {
			hc2problem.CertInvalid(r.URL.Path, err.Error()).Write(w, contextx.Logger(r.Context()))
			return
		}

		pub, err := hc2ca.ParsePublicKeyB64(cert.Payload.Metadata.PublicKeyB64)
		if err != nil {
			hc2problem.CertClaimsInvalid(r.URL.Path, err.Error()).Write(w, contextx.Logger(r.Context()))
			return
		}
		if err := hc2ca.VerifyWithKey(pub, signed.Payload, signed.Signature); err != nil {
			hc2problem.CertInvalid(r.URL.Path, "registration signature does not match certificate's public key").Write(w, contextx.Logger(r.Context()))
			return
		}

		if err := hc2registry.ValidateClaims(signed.Payload, cert.Payload); err != nil {
			hc2problem.CertClaimsInvalid(r.URL.Path, err.Error()).Write(w, contextx.Logger(r.Context()))
			return
		}

		receipt, err := registry.Register(r.Context(), signed.Payload, cert)
		if err != nil {
			hc2problem.StoreUnavailable(r.URL.Path, err.Error()).Write(w, contextx.Logger(r.Context()))
			return
		}
		w.Header().Set("X-Count", "1")
		w.Header().Set("X-HC2-Resource", receipt.URN)
		writeJSON(w, http.StatusCreated, receipt)
	})

	mux.HandleFunc("GET /api/v1/services", func(w http.ResponseWriter, r *http.Request) {
		receipts, err := registry.ListServices(r.Context())
		if err != nil {
			hc2problem.StoreUnavailable(r.URL.Path, err.Error()).Write(w, contextx.Logger(r.Context()))
			return
		}
		writeJSON(w, http.StatusOK, receipts)
	})

	return withRequestContext(mux, log)
}

// withRequestContext tags every registry request with a request id and a
// request-scoped logger, mirroring the gateway's own request tagging.
func withRequestContext(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = hc2utils.NewUUIDOrDefault()
		}
		ctx := contextx.WithRequestID(r.Context(), reqID)
		ctx = contextx.WithLogger(ctx, log.With(zap.String("requestId", reqID)))
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeCertificateB64(b64Str string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(b64Str)
	if err != nil {
		return nil, fmt.Errorf("embedded certificate is not valid base64: %w", err)
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

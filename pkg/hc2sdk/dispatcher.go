// Package hc2sdk implements the Client SDK / Dispatcher: service
// registration, lazy profile sync, and a virtual per-service namespace that
// dispatches JSON-RPC calls with multi-instance failover. It never throws
// from user-visible methods — every call returns a result Envelope.
package hc2sdk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hc2-project/hc2/pkg/hc2types"
)

// DefaultCallTimeout bounds a single JSON-RPC call to one instance.
const DefaultCallTimeout = 5 * time.Second

// SDK is the client SDK: it registers a service, syncs the route table on
// demand, and exposes per-service dispatchers via My.
type SDK struct {
	gatewayURL string
	httpClient *http.Client
	log        *zap.Logger

	table     *routeTable
	syncGroup singleflight.Group

	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker
}

// New constructs an SDK pointed at gatewayURL (the gateway's base URL,
// e.g. "http://gateway:8080").
func New(gatewayURL string, log *zap.Logger) *SDK {
	if log == nil {
		log = zap.NewNop()
	}
	return &SDK{
		gatewayURL: gatewayURL,
		httpClient: &http.Client{Timeout: DefaultCallTimeout},
		log:        log.With(zap.String("module", "hc2sdk")),
		table:      newRouteTable(),
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Register submits signed to the gateway: first the embedded certificate
// for verification, then the registration itself. It returns the receipt.
func (s *SDK) Register(ctx context.Context, signed hc2types.SignedRegistration, cert hc2types.ServiceCertificate) (*hc2types.RegistrationReceipt, error) {
	certBody, err := json.Marshal(map[string]interface{}{"payload": cert.Payload, "signature": cert.Signature})
	if err != nil {
		return nil, fmt.Errorf("failed to encode certificate: %w", err)
	}
	verifyURL := fmt.Sprintf("%s/api/v1/certs/%s/verify", s.gatewayURL, cert.Payload.Metadata.CertificateID)
	resp, err := s.postJSON(ctx, verifyURL, certBody)
	if err != nil {
		return nil, fmt.Errorf("certificate verification request failed: %w", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		return nil, fmt.Errorf("certificate verification rejected: status %d", resp.StatusCode)
	}

	regBody, err := json.Marshal(signed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration: %w", err)
	}
	resp, err = s.postJSON(ctx, s.gatewayURL+"/api/v1/services", regBody)
	if err != nil {
		return nil, fmt.Errorf("registration request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("registration rejected: status %d: %s", resp.StatusCode, string(data))
	}

	var receipt hc2types.RegistrationReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &receipt, nil
}

func (s *SDK) postJSON(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.httpClient.Do(req)
}

// EncodeCertificateB64 base64-encodes cert's JSON encoding, for embedding
// as a SignedRegistration's HC2ServiceCertificate field.
func EncodeCertificateB64(cert hc2types.ServiceCertificate) (string, error) {
	data, err := json.Marshal(cert)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Ready is idempotent: the first call fetches /api/v1/profiles and rebuilds
// the route table atomically; concurrent callers during that fetch share
// its result via a singleflight group instead of issuing duplicate
// requests. It never returns an error — failure yields a stale SyncInfo.
func (s *SDK) Ready(ctx context.Context) SyncInfo {
	s.table.mu.RLock()
	if s.table.hasSynced {
		result := s.table.lastResult
		s.table.mu.RUnlock()
		return result
	}
	s.table.mu.RUnlock()

	v, _, _ := s.syncGroup.Do("ready", func() (interface{}, error) {
		s.table.mu.RLock()
		if s.table.hasSynced {
			result := s.table.lastResult
			s.table.mu.RUnlock()
			return result, nil
		}
		s.table.mu.RUnlock()

		result := s.fetchProfiles(ctx)

		s.table.mu.Lock()
		s.table.lastResult = result
		s.table.hasSynced = true
		s.table.mu.Unlock()

		return result, nil
	})
	return v.(SyncInfo)
}

func (s *SDK) fetchProfiles(ctx context.Context) SyncInfo {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.gatewayURL+"/api/v1/profiles", nil)
	if err != nil {
		s.table.markStale()
		return SyncInfo{ReadyAt: time.Now(), Services: s.table.snapshotNames(), Status: StatusStale}
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Warn("profile sync failed", zap.Error(err))
		s.table.markStale()
		return SyncInfo{ReadyAt: time.Now(), Services: s.table.snapshotNames(), Status: StatusStale}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Warn("profile sync returned non-200", zap.Int("status", resp.StatusCode))
		s.table.markStale()
		return SyncInfo{ReadyAt: time.Now(), Services: s.table.snapshotNames(), Status: StatusStale}
	}

	var profiles []hc2types.ServiceProfile
	if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
		s.log.Warn("profile sync decode failed", zap.Error(err))
		s.table.markStale()
		return SyncInfo{ReadyAt: time.Now(), Services: s.table.snapshotNames(), Status: StatusStale}
	}

	names := s.table.rebuild(profiles)
	return SyncInfo{ReadyAt: time.Now(), Services: names, Status: StatusFresh}
}

// breakerFor returns (creating if necessary) the circuit breaker guarding
// endpoint, so a repeatedly-failing instance is skipped before its retry
// budget is spent. This never suppresses the spec's own per-instance
// failover: an open breaker only causes an earlier fallthrough to the next
// instance, which the spec already requires on failure.
func (s *SDK) breakerFor(endpoint string) *gobreaker.CircuitBreaker {
	s.breakersMu.Lock()
	defer s.breakersMu.Unlock()

	if b, ok := s.breakers[endpoint]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	s.breakers[endpoint] = b
	return b
}

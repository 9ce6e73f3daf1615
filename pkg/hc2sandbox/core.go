package hc2sandbox

import (
	"context"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Core bundles the stable utilities every module can reach regardless of
// policy: hashing, id generation, outbound fetch, and a scoped logger.
type Core struct {
	httpClient *http.Client
	log        *zap.Logger
}

func newCore(log *zap.Logger, moduleName string) Core {
	return Core{
		httpClient: &http.Client{},
		log:        log.With(zap.String("sandboxModule", moduleName)),
	}
}

// Hash returns the hex-encoded blake2b-256 digest of data.
func (c Core) Hash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// UUID returns a fresh time-ordered UUID string.
func (c Core) UUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Fetch performs an outbound GET request and returns the response body.
func (c Core) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Logger returns this module's scoped logger.
func (c Core) Logger() *zap.Logger {
	return c.log
}

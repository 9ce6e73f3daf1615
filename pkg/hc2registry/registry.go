// Package hc2registry implements the Service Registry: claim validation
// against a presented certificate, receipt synthesis, persistence, and
// listing.
package hc2registry

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hc2-project/hc2/pkg/hc2ca"
	"github.com/hc2-project/hc2/pkg/hc2types"
	"github.com/hc2-project/hc2/pkg/utils"
)

// Store is the durable persistence contract the registry writes receipts
// through. pkg/hc2store.Store satisfies this.
type Store interface {
	PutReceipt(ctx context.Context, doc hc2types.ReceiptDocument) error
	DeleteReceipt(ctx context.Context, serviceID, lastKnownName string) error
	ListReceipts(ctx context.Context) ([]hc2types.ReceiptDocument, error)
}

// Registry validates and persists service registrations.
type Registry struct {
	store Store
	log   *zap.Logger
}

// New constructs a Registry backed by store.
func New(store Store, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{store: store, log: log.With(zap.String("module", "hc2registry"))}
}

// Register assumes the caller has already verified the certificate and
// validated claims (ValidateClaims). It synthesizes and persists a
// RegistrationReceipt. On store failure the registration fails outright:
// no partial state is left behind.
func (r *Registry) Register(ctx context.Context, reg hc2types.RegistrationPayload, cert hc2types.ServiceCertificate) (*hc2types.RegistrationReceipt, error) {
	certDigest := certSHA256(cert)

	nonce, err := randomNonceHex(16)
	if err != nil {
		return nil, err
	}

	alias, err := newAlias()
	if err != nil {
		return nil, err
	}

	serviceID := utils.NewUUIDOrDefault()
	now := time.Now().UnixMilli()

	receipt := hc2types.RegistrationReceipt{
		ReceiptID:      utils.NewUUIDOrDefault(),
		ServiceID:      serviceID,
		App:            reg.App,
		ServiceName:    reg.Service.Name,
		Alias:          alias,
		CreatedAt:      now,
		ExpiresAt:      now + hc2ca.DefaultValidityMillis,
		InstanceID:     cert.Payload.Metadata.InstanceID,
		InstancePubKey: cert.Payload.Metadata.PublicKeyB64,
		CertSHA256:     certDigest,
		Nonce:          nonce,
		URN:            fmt.Sprintf("urn:hcp:hc2:service-registration-receipt:%s", serviceID),
	}

	doc := hc2types.ReceiptDocument{Claims: reg, Receipt: receipt}
	if err := r.store.PutReceipt(ctx, doc); err != nil {
		r.log.Error("failed to persist receipt", zap.Error(err), zap.String("serviceName", reg.Service.Name))
		return nil, fmt.Errorf("failed to persist receipt: %w", err)
	}

	r.log.Info("registered service",
		zap.String("serviceName", reg.Service.Name),
		zap.String("serviceId", serviceID),
		zap.String("alias", alias),
	)
	return &receipt, nil
}

// ListServices returns every receipt currently in the store.
func (r *Registry) ListServices(ctx context.Context) ([]hc2types.RegistrationReceipt, error) {
	docs, err := r.store.ListReceipts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	receipts := make([]hc2types.RegistrationReceipt, 0, len(docs))
	for _, doc := range docs {
		receipts = append(receipts, doc.Receipt)
	}
	return receipts, nil
}

// Revoke deletes the receipt for serviceID, publishing a tombstone on the
// change feed so the propagator can remove the corresponding instance.
func (r *Registry) Revoke(ctx context.Context, serviceID, lastKnownName string) error {
	if err := r.store.DeleteReceipt(ctx, serviceID, lastKnownName); err != nil {
		return fmt.Errorf("failed to revoke receipt: %w", err)
	}
	r.log.Info("revoked service", zap.String("serviceId", serviceID), zap.String("serviceName", lastKnownName))
	return nil
}

func certSHA256(cert hc2types.ServiceCertificate) string {
	sum := sha256.Sum256([]byte(cert.Signature))
	return hex.EncodeToString(sum[:])
}

func randomNonceHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

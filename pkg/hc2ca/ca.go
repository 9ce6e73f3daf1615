// Package hc2ca implements the Certificate Authority: it signs a service's
// manifest into a ServiceCertificate and later verifies that certificate's
// signature and payload integrity.
package hc2ca

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hc2-project/hc2/pkg/hc2types"
	"github.com/hc2-project/hc2/pkg/utils"
)

// DefaultValidityMillis is how long an issued certificate remains valid,
// in milliseconds (604_800_000 = 7 days). The CA computes and stores this
// but nothing in the system enforces it.
const DefaultValidityMillis = int64(7 * 24 * time.Hour / time.Millisecond)

const keyBits = 2048

// pssOptions fixes the PSS salt length at 32 bytes (SHA-256's output size)
// rather than the default PSSSaltLengthAuto, so every signature has a
// deterministic, spec-mandated salt length.
var pssOptions = &rsa.PSSOptions{SaltLength: 32, Hash: crypto.SHA256}

// CA holds the authority's signing key pair.
type CA struct {
	priv *rsa.PrivateKey
	log  *zap.Logger
}

// New generates a fresh 2048-bit RSA key pair for the authority.
func New(log *zap.Logger) (*CA, error) {
	if log == nil {
		log = zap.NewNop()
	}
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}
	return &CA{priv: priv, log: log.With(zap.String("module", "hc2ca"))}, nil
}

// PublicKeyB64 returns the CA's public key, PKIX-DER encoded and
// base64-standard encoded, suitable for embedding in a certificate.
func (c *CA) PublicKeyB64() (string, error) {
	return publicKeyB64(&c.priv.PublicKey)
}

func publicKeyB64(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// GenerateCertificate signs req into a ServiceCertificate. instanceID
// identifies the requesting sandbox instance; it is embedded in the
// certificate metadata so the registry can correlate receipts back to a
// specific process.
func (c *CA) GenerateCertificate(req hc2types.CertificateRequest, instanceID string) (*hc2types.ServiceCertificate, error) {
	issuedAt := time.Now().UnixMilli()
	payload := hc2types.CertificatePayload{
		App:     req.Claims.App,
		Service: req.Claims.Service,
		Metadata: hc2types.CertificateMetadata{
			DeploymentID:  utils.NewUUIDv4(),
			CertificateID: utils.NewUUIDv4(),
			InstanceID:    instanceID,
			PublicKeyB64:  req.PublicKeyB64,
			IssuedAt:      issuedAt,
			ExpiresAt:     issuedAt + DefaultValidityMillis,
		},
	}

	sig, err := c.sign(payload)
	if err != nil {
		c.log.Error("failed to sign certificate", zap.Error(err), zap.String("service", req.Claims.Service.Name))
		return nil, err
	}

	c.log.Info("issued certificate",
		zap.String("service", req.Claims.Service.Name),
		zap.String("certificateId", payload.Metadata.CertificateID),
		zap.String("instanceId", instanceID),
	)

	return &hc2types.ServiceCertificate{Payload: payload, Signature: sig}, nil
}

// VerifyCertificate checks that cert's signature was produced by this CA
// over its own payload. It does not check expiry.
func (c *CA) VerifyCertificate(cert hc2types.ServiceCertificate) error {
	return c.verify(cert.Payload, cert.Signature)
}

func (c *CA) sign(payload interface{}) (string, error) {
	digest, err := canonicalDigest(payload)
	if err != nil {
		return "", err
	}
	sig, err := rsa.SignPSS(rand.Reader, c.priv, crypto.SHA256, digest, pssOptions)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func (c *CA) verify(payload interface{}, sigB64 string) error {
	digest, err := canonicalDigest(payload)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("malformed signature encoding: %w", err)
	}
	if err := rsa.VerifyPSS(&c.priv.PublicKey, crypto.SHA256, digest, sig, pssOptions); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// ParsePublicKeyB64 decodes a PKIX-DER, base64-standard-encoded RSA public
// key, as embedded in a ServiceCertificate's metadata.
func ParsePublicKeyB64(b64 string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("malformed public key encoding: %w", err)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaPub, nil
}

// VerifyWithKey verifies sigB64 over payload's canonical JSON under pub.
// Used to verify a SignedRegistration's outer signature against the
// public key embedded in its certificate, independent of any particular
// CA instance.
func VerifyWithKey(pub *rsa.PublicKey, payload interface{}, sigB64 string) error {
	digest, err := canonicalDigest(payload)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("malformed signature encoding: %w", err)
	}
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest, sig, pssOptions); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// canonicalDigest produces a stable SHA-256 digest of payload's JSON
// encoding. encoding/json already sorts map keys and struct fields follow
// declaration order, so re-marshaling the same value always yields the
// same bytes.
func canonicalDigest(payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

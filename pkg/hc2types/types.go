// Package hc2types holds the wire/data model shared by the Certificate
// Authority, Service Registry, Change Propagator, Gateway, and Client SDK.
// Keeping it separate avoids an import cycle between those packages.
package hc2types

// NetworkSpec describes how a service is reached.
type NetworkSpec struct {
	InternalOnly   bool   `json:"internalOnly"`
	PublicHostName string `json:"publicHostName,omitempty"`
	RPCEndpoint    string `json:"rpcEndpoint"`
}

// MethodSpec describes one RPC method a service exposes.
type MethodSpec struct {
	Name      string                 `json:"name"`
	Params    map[string]interface{} `json:"params"`
	Retryable bool                   `json:"retryable,omitempty"`
}

// APISpec groups the methods a service exposes.
type APISpec struct {
	Description string       `json:"description,omitempty"`
	Methods     []MethodSpec `json:"methods"`
}

// ServiceManifest is the declarative description of a service: identity,
// API, and network reachability.
type ServiceManifest struct {
	Name       string      `json:"name"`
	Version    string      `json:"version"`
	DependsOn  []string    `json:"dependsOn,omitempty"`
	Ports      []int       `json:"ports,omitempty"`
	API        APISpec     `json:"api"`
	Network    NetworkSpec `json:"network"`
}

// MethodByName looks up a method by name, reporting whether it exists.
func (m ServiceManifest) MethodByName(name string) (MethodSpec, bool) {
	for _, method := range m.API.Methods {
		if method.Name == name {
			return method, true
		}
	}
	return MethodSpec{}, false
}

// CertificateRequestClaims is the body of a certificate request: the app
// name plus the service manifest the instance wants a certificate for.
type CertificateRequestClaims struct {
	App     string          `json:"app"`
	Service ServiceManifest `json:"service"`
}

// CertificateRequest is submitted to the CA for signing.
type CertificateRequest struct {
	Claims       CertificateRequestClaims `json:"claims"`
	PublicKeyB64 string                   `json:"publicKey"`
}

// CertificateMetadata is appended by the CA at issuance time.
type CertificateMetadata struct {
	DeploymentID  string `json:"deploymentId"`
	CertificateID string `json:"certificateId"`
	InstanceID    string `json:"instanceId"`
	PublicKeyB64  string `json:"publicKey"`
	IssuedAt      int64  `json:"issuedAt"`
	ExpiresAt     int64  `json:"expiresAt"`
}

// CertificatePayload is the signed body of a ServiceCertificate: the
// original claims plus CA metadata.
type CertificatePayload struct {
	App      string               `json:"app"`
	Service  ServiceManifest      `json:"service"`
	Metadata CertificateMetadata  `json:"metadata"`
}

// Envelope pairs a JSON payload with a base64-encoded signature over its
// canonical JSON encoding. Used for both ServiceCertificate and
// SignedRegistration.
type Envelope struct {
	Payload   interface{} `json:"payload"`
	Signature string      `json:"signature"`
}

// ServiceCertificate is the CA's signed attestation of a service identity.
type ServiceCertificate struct {
	Payload   CertificatePayload `json:"payload"`
	Signature string             `json:"signature"`
}

// RegistrationPayload is the body a service signs and submits to the
// Registry: its manifest plus the certificate it was issued.
type RegistrationPayload struct {
	App                     string             `json:"app"`
	Service                 ServiceManifest    `json:"service"`
	HC2ServiceCertificateB64 string            `json:"HC2ServiceCertificate"`
}

// SignedRegistration is the outer envelope submitted to POST /api/v1/services.
type SignedRegistration struct {
	Payload   RegistrationPayload `json:"payload"`
	Signature string              `json:"signature"`
}

// RegistrationReceipt is the canonical record of an accepted service.
type RegistrationReceipt struct {
	ReceiptID      string `json:"receiptId"`
	ServiceID      string `json:"serviceId"`
	App            string `json:"app"`
	ServiceName    string `json:"serviceName"`
	Alias          string `json:"alias"`
	CallbackURL    string `json:"callbackURL,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
	ExpiresAt      int64  `json:"expiresAt"`
	InstanceID     string `json:"instanceId"`
	InstancePubKey string `json:"instancePublicKey"`
	CertSHA256     string `json:"certificateSha256"`
	Nonce          string `json:"nonce"`
	URN            string `json:"urn"`
}

// ReceiptDocument is what actually gets persisted in the durable store: the
// verbatim claims alongside the minted receipt, so the Change Propagator
// can derive a ServiceProfile from it without re-contacting the registry.
type ReceiptDocument struct {
	Claims  RegistrationPayload  `json:"claims"`
	Receipt RegistrationReceipt  `json:"receipt"`
}

// Instance is one live, receipt-backed endpoint for a service.
type Instance struct {
	ID                  string `json:"id"`
	RegistrationReceiptID string `json:"receiptId"`
	CreatedAt           int64  `json:"createdAt"`
	RPCEndpoint         string `json:"rpcEndpoint"`
	URN                 string `json:"urn"`
}

// ServiceProfile is the Change Propagator's derived, read-only aggregation
// of all live instances for one service name.
type ServiceProfile struct {
	Name      string      `json:"name"`
	Version   string      `json:"version"`
	DependsOn []string    `json:"dependsOn,omitempty"`
	Ports     []int       `json:"ports,omitempty"`
	API       APISpec     `json:"api"`
	Instances []Instance  `json:"instances"`
}

package hc2registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hc2-project/hc2/pkg/hc2ca"
	"github.com/hc2-project/hc2/pkg/hc2types"
)

type memStore struct {
	docs map[string]hc2types.ReceiptDocument
}

func newMemStore() *memStore { return &memStore{docs: make(map[string]hc2types.ReceiptDocument)} }

func (m *memStore) PutReceipt(_ context.Context, doc hc2types.ReceiptDocument) error {
	m.docs[doc.Receipt.ServiceID] = doc
	return nil
}

func (m *memStore) DeleteReceipt(_ context.Context, serviceID, _ string) error {
	delete(m.docs, serviceID)
	return nil
}

func (m *memStore) ListReceipts(_ context.Context) ([]hc2types.ReceiptDocument, error) {
	out := make([]hc2types.ReceiptDocument, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	return out, nil
}

func testManifest() hc2types.ServiceManifest {
	return hc2types.ServiceManifest{
		Name:    "NOOPService",
		Version: "0.0.1",
		DependsOn: []string{"CacheService"},
		Ports:   []int{3001},
		API: hc2types.APISpec{
			Methods: []hc2types.MethodSpec{
				{Name: "hello", Params: map[string]interface{}{"type": "object"}},
			},
		},
		Network: hc2types.NetworkSpec{RPCEndpoint: "http://noop_service:3001/rpc"},
	}
}

func TestValidateClaimsHappyPath(t *testing.T) {
	ca, err := hc2ca.New(nil)
	require.NoError(t, err)

	manifest := testManifest()
	certReq := hc2types.CertificateRequest{Claims: hc2types.CertificateRequestClaims{App: "current.ly", Service: manifest}}
	cert, err := ca.GenerateCertificate(certReq, "instance-1")
	require.NoError(t, err)

	reg := hc2types.RegistrationPayload{App: "current.ly", Service: manifest}
	require.NoError(t, ValidateClaims(reg, cert.Payload))
}

func TestValidateClaimsRejectsTamperedField(t *testing.T) {
	ca, err := hc2ca.New(nil)
	require.NoError(t, err)

	manifest := testManifest()
	certReq := hc2types.CertificateRequest{Claims: hc2types.CertificateRequestClaims{App: "current.ly", Service: manifest}}
	cert, err := ca.GenerateCertificate(certReq, "instance-1")
	require.NoError(t, err)

	tampered := manifest
	tampered.Version = "0.0.2"
	reg := hc2types.RegistrationPayload{App: "current.ly", Service: tampered}

	err = ValidateClaims(reg, cert.Payload)
	require.Error(t, err)
	var claimsErr *ErrClaimsInvalid
	require.ErrorAs(t, err, &claimsErr)
}

func TestRegisterSynthesizesReceipt(t *testing.T) {
	ca, err := hc2ca.New(nil)
	require.NoError(t, err)

	manifest := testManifest()
	certReq := hc2types.CertificateRequest{Claims: hc2types.CertificateRequestClaims{App: "current.ly", Service: manifest}}
	cert, err := ca.GenerateCertificate(certReq, "instance-1")
	require.NoError(t, err)

	reg := hc2types.RegistrationPayload{App: "current.ly", Service: manifest}
	registry := New(newMemStore(), nil)

	receipt, err := registry.Register(context.Background(), reg, *cert)
	require.NoError(t, err)
	require.Equal(t, "NOOPService", receipt.ServiceName)
	require.Regexp(t, `^[a-z]+-[a-z]+$`, receipt.Alias)
	require.Equal(t, hc2ca.DefaultValidityMillis, receipt.ExpiresAt-receipt.CreatedAt)

	list, err := registry.ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
}

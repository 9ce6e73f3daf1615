package hc2ca

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hc2-project/hc2/pkg/hc2types"
)

func testManifest() hc2types.ServiceManifest {
	return hc2types.ServiceManifest{
		Name:    "NOOPService",
		Version: "0.0.1",
		API: hc2types.APISpec{
			Methods: []hc2types.MethodSpec{
				{Name: "hello", Params: map[string]interface{}{"type": "object"}},
			},
		},
		Network: hc2types.NetworkSpec{RPCEndpoint: "http://noop_service:3001/rpc"},
	}
}

func TestGenerateAndVerifyCertificate(t *testing.T) {
	ca, err := New(nil)
	require.NoError(t, err)

	req := hc2types.CertificateRequest{
		Claims: hc2types.CertificateRequestClaims{App: "current.ly", Service: testManifest()},
	}
	cert, err := ca.GenerateCertificate(req, "instance-1")
	require.NoError(t, err)
	require.Equal(t, cert.Payload.Metadata.ExpiresAt-cert.Payload.Metadata.IssuedAt, DefaultValidityMillis)

	require.NoError(t, ca.VerifyCertificate(*cert))
}

func TestVerifyCertificateRejectsTamperedSignature(t *testing.T) {
	ca, err := New(nil)
	require.NoError(t, err)

	req := hc2types.CertificateRequest{
		Claims: hc2types.CertificateRequestClaims{App: "current.ly", Service: testManifest()},
	}
	cert, err := ca.GenerateCertificate(req, "instance-1")
	require.NoError(t, err)

	tampered := *cert
	if tampered.Signature[len(tampered.Signature)-1] == 'A' {
		tampered.Signature = tampered.Signature[:len(tampered.Signature)-1] + "B"
	} else {
		tampered.Signature = tampered.Signature[:len(tampered.Signature)-1] + "A"
	}
	require.Error(t, ca.VerifyCertificate(tampered))
}

func TestVerifyWithKeyRoundTrip(t *testing.T) {
	ca, err := New(nil)
	require.NoError(t, err)
	pubB64, err := ca.PublicKeyB64()
	require.NoError(t, err)

	pub, err := ParsePublicKeyB64(pubB64)
	require.NoError(t, err)

	reg := hc2types.RegistrationPayload{App: "current.ly", Service: testManifest()}
	sig, err := ca.sign(reg)
	require.NoError(t, err)

	require.NoError(t, VerifyWithKey(pub, reg, sig))

	reg.Service.Version = "0.0.2"
	require.Error(t, VerifyWithKey(pub, reg, sig))
}

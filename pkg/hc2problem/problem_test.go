package hc2problem

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCertInvalidWritesForbidden(t *testing.T) {
	rec := httptest.NewRecorder()
	CertInvalid("/api/v1/certs/abc/verify", "signature mismatch").Write(rec, nil)

	require.Equal(t, 403, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body Detail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, TypeCertInvalid, body.Type)
	require.Equal(t, "signature mismatch", body.Detail)
	require.Equal(t, "/api/v1/certs/abc/verify", body.Instance)
}

func TestStatusDefaultsToInternalServerError(t *testing.T) {
	d := &Detail{Type: TypeInternal}
	require.Equal(t, 500, d.Status())
}

func TestWriteReusesPooledBufferAcrossCalls(t *testing.T) {
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		NotFound("/api/v1/services/missing", "no such service").Write(rec, nil)
		require.Equal(t, 404, rec.Code)
		require.Contains(t, rec.Body.String(), "no such service")
	}
}

package hc2gateway

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hc2-project/hc2/pkg/hc2types"
)

type fakeProfileSource struct {
	profiles []hc2types.ServiceProfile
}

func (f *fakeProfileSource) Profiles() []hc2types.ServiceProfile { return f.profiles }

func TestHandleProfiles(t *testing.T) {
	src := &fakeProfileSource{profiles: []hc2types.ServiceProfile{{Name: "NOOPService"}}}
	gw, err := New(src, nil, "http://registry.internal:3000", nil)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/profiles", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "NOOPService")
}

func TestHandleHealth(t *testing.T) {
	gw, err := New(&fakeProfileSource{}, nil, "http://registry.internal:3000", nil)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("redis unreachable") }

func TestHandleHealthReportsPingFailure(t *testing.T) {
	gw, err := New(&fakeProfileSource{}, failingPinger{}, "http://registry.internal:3000", nil)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	require.Equal(t, 503, rec.Code)
}

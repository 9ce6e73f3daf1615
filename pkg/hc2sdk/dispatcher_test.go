package hc2sdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatchUnknownServiceIsRouteNotFound(t *testing.T) {
	sdk := New("http://gateway.invalid", nil)
	env := sdk.My("NOOPService").Call(context.Background(), "hello", map[string]string{"receiver": "host"})

	require.True(t, env.HasError)
	require.Equal(t, ErrRouteNotFound, env.Error.Code)
	require.True(t, env.Error.Retryable)
	require.Equal(t, SourceSDK, env.Error.Source)
}

func TestReadyIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"NOOPService","instances":[]}]`))
	}))
	defer srv.Close()

	sdk := New(srv.URL, nil)
	first := sdk.Ready(context.Background())
	second := sdk.Ready(context.Background())

	require.Equal(t, StatusFresh, first.Status)
	require.Equal(t, first.ReadyAt, second.ReadyAt)
	require.Equal(t, first.Services, second.Services)
}

func TestDispatchMethodNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"NOOPService","instances":[{"rpcEndpoint":"http://noop:3001/rpc"}]}]`))
	}))
	defer srv.Close()

	sdk := New(srv.URL, nil)
	sdk.Ready(context.Background())

	env := sdk.My("NOOPService").Call(context.Background(), "missing", nil)
	require.True(t, env.HasError)
	require.Equal(t, ErrMethodNotFound, env.Error.Code)
}

package hc2demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNOOPServiceHello(t *testing.T) {
	svc, err := NewNOOPService(nil)
	require.NoError(t, err)

	result, err := svc.Methods()["hello"](context.Background(), []interface{}{map[string]interface{}{"receiver": "host"}})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"greeting": "hello, host"}, result)
}

func TestNOOPServiceHelloDefaultsToWorld(t *testing.T) {
	svc, err := NewNOOPService(nil)
	require.NoError(t, err)

	result, err := svc.Methods()["hello"](context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"greeting": "hello, world"}, result)
}

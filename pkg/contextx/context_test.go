package contextx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	require.Equal(t, "req-123", RequestID(ctx))
}

func TestRequestIDDefaultsToEmpty(t *testing.T) {
	require.Equal(t, "", RequestID(context.Background()))
}

func TestLoggerRoundTrip(t *testing.T) {
	log := zap.NewExample()
	ctx := WithLogger(context.Background(), log)
	require.Same(t, log, Logger(ctx))
}

func TestLoggerDefaultsToNop(t *testing.T) {
	require.NotNil(t, Logger(context.Background()))
}

package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckerRegisterStartsHealthy(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("zfs", func(ctx context.Context) error { return nil })

	assert.True(t, hc.IsHealthy())
	assert.True(t, hc.IsReady())
}

func TestRunChecksMarksUnhealthyOnError(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("zfs", func(ctx context.Context) error { return errors.New("zfs binary not found") })
	hc.RunChecks(context.Background())

	assert.False(t, hc.IsHealthy())
	assert.False(t, hc.IsReady())

	health := hc.GetHealth()
	require.Contains(t, health, "zfs")
	assert.Equal(t, HealthStatusUnhealthy, health["zfs"].Status)
	assert.Equal(t, "zfs binary not found", health["zfs"].Message)
}

func TestIsReadyIgnoresNonZFSComponents(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("zfs", func(ctx context.Context) error { return nil })
	hc.RegisterCheck("other", func(ctx context.Context) error { return errors.New("boom") })
	hc.RunChecks(context.Background())

	assert.False(t, hc.IsHealthy())
	assert.True(t, hc.IsReady())
}

func TestZFSHealthCheckWrapsProbeError(t *testing.T) {
	check := ZFSHealthCheck(func(ctx context.Context) error { return errors.New("no zpool") })
	err := check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zfs unavailable")
}

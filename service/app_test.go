package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statelab/dashkit/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 38131
	cfg.Storage.Mode = config.StorageModeMemory
	cfg.Metrics.Enabled = false
	return cfg
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Client.BaseURL = ""

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewBuildsGraph(t *testing.T) {
	app, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)

	assert.NotNil(t, app.Loader())
	assert.NotNil(t, app.Recorder())
	assert.NotNil(t, app.Notifications())
}

func TestNewFileStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Mode = config.StorageModeFile
	cfg.Storage.Dir = t.TempDir()

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, app.store)
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)

	require.NoError(t, app.Start(ctx))

	// Double start is rejected.
	assert.Error(t, app.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, app.Stop(stopCtx))

	// Double stop is rejected too.
	assert.Error(t, app.Stop(stopCtx))
}

func TestHealthProbeDegradedWithoutStore(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)

	app.probeHealth(ctx)

	status, ok := app.monitor.Get("store")
	require.True(t, ok)
	assert.True(t, status.IsDegraded())

	system := app.monitor.AggregateHealth("dashkit")
	assert.True(t, system.IsDegraded())
}

func TestHealthProbeWithFileStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Storage.Mode = config.StorageModeFile
	cfg.Storage.Dir = t.TempDir()

	app, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	app.probeHealth(ctx)

	status, ok := app.monitor.Get("store")
	require.True(t, ok)
	assert.True(t, status.IsHealthy())
}

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/equity-snapshot/internal/config"
	"github.com/sells-group/equity-snapshot/internal/provider"
)

// testConfig points the app at a temp sqlite store, the in-memory queue and
// the synthetic provider fixtures, so a full run needs no network at all.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "cmd.db"),
		},
		Queue: config.QueueConfig{
			Driver: "memory",
			Workers: config.WorkersConfig{
				Ingest:     1,
				Normalize:  1,
				Embed:      1,
				Synthesize: 1,
			},
		},
		Providers: provider.Config{Synthetic: true},
	}
}

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestInitEnvAndFullRun(t *testing.T) {
	withConfig(t, testConfig(t))
	ctx := context.Background()

	env, err := initEnv(ctx)
	require.NoError(t, err)
	defer env.Close()

	payload, accepted, err := enqueueSymbol(ctx, env, "AAPL", false)
	require.NoError(t, err)
	require.True(t, accepted)
	assert.Equal(t, "AAPL", payload.Symbol)
	require.NotNil(t, payload.Identity)

	runTimeout = 30 * time.Second
	snapshot, err := driveRun(ctx, env, payload)
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, payload.RunID, snapshot.RunID)
	assert.Equal(t, "AAPL", snapshot.Symbol)
	assert.NotEmpty(t, snapshot.Thesis)
	assert.Greater(t, snapshot.Score, 0.0)
	assert.NotEmpty(t, snapshot.Sources)
}

func TestEnqueueSymbolDuplicateSuppressed(t *testing.T) {
	withConfig(t, testConfig(t))
	ctx := context.Background()

	env, err := initEnv(ctx)
	require.NoError(t, err)
	defer env.Close()

	_, accepted, err := enqueueSymbol(ctx, env, "MSFT", false)
	require.NoError(t, err)
	require.True(t, accepted)

	_, accepted, err = enqueueSymbol(ctx, env, "MSFT", false)
	require.NoError(t, err)
	assert.False(t, accepted, "same symbol in the same hour bucket dedupes")

	_, accepted, err = enqueueSymbol(ctx, env, "MSFT", true)
	require.NoError(t, err)
	assert.True(t, accepted, "force bypasses the idempotency window")
}

func TestEnqueueSymbolUnresolvable(t *testing.T) {
	withConfig(t, testConfig(t))
	ctx := context.Background()

	env, err := initEnv(ctx)
	require.NoError(t, err)
	defer env.Close()

	_, _, err = enqueueSymbol(ctx, env, "not a real company name!!", false)
	require.Error(t, err)
}

func TestInitStoreUnknownDriver(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "bolt"
	withConfig(t, c)

	_, err := initStore(context.Background())
	require.Error(t, err)
}

func TestInitQueueUnknownDriver(t *testing.T) {
	c := testConfig(t)
	c.Queue.Driver = "kafka"
	withConfig(t, c)

	_, _, err := initQueue(context.Background())
	require.Error(t, err)
}

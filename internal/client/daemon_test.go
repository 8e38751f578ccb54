package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandstaetter/brandybox/internal/client/config"
)

func testDaemonConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Path:         filepath.Join(dir, "config.json"),
		Email:        "alice@example.org",
		SyncDir:      filepath.Join(dir, "brandyBox"),
		ServerURL:    "http://127.0.0.1:9", // never dialed in these tests
		RefreshToken: "token",
	}
}

func TestNewDaemon_RequiresLogin(t *testing.T) {
	cfg := testDaemonConfig(t)
	cfg.RefreshToken = ""

	_, err := NewDaemon(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login")
}

func TestNewDaemon_RequiresValidConfig(t *testing.T) {
	cfg := testDaemonConfig(t)
	cfg.Email = ""

	_, err := NewDaemon(cfg)
	assert.Error(t, err)
}

func TestNewDaemon_AppliesSyncDefaults(t *testing.T) {
	cfg := testDaemonConfig(t)
	d, err := NewDaemon(cfg)
	require.NoError(t, err)

	def := config.DefaultSyncConfig()
	assert.Equal(t, def.IntervalSecs, cfg.Sync.IntervalSecs)
	assert.Equal(t, def.Workers, cfg.Sync.Workers)
	assert.NotNil(t, d.engine)
}

func TestDaemon_SyncNowNeverBlocks(t *testing.T) {
	d, err := NewDaemon(testDaemonConfig(t))
	require.NoError(t, err)

	d.SyncNow()
	d.SyncNow()
	d.SyncNow()

	assert.Len(t, d.syncNow, 1)
}

func TestDaemon_PublishDropsWhenFull(t *testing.T) {
	d, err := NewDaemon(testDaemonConfig(t))
	require.NoError(t, err)

	for i := 0; i < eventBufferSize+10; i++ {
		d.publish(Event{Type: EventStatus, Status: "tick"})
	}

	assert.Len(t, d.events, eventBufferSize)
}

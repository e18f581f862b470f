package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	ws := t.TempDir()
	v := New()
	v.Set("workspace", ws)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(ws, "data", "memory.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(ws, "data", "activity.db"), cfg.ActivityDBPath)
	assert.Equal(t, filepath.Join(ws, "memory", "MEMORY.md"), cfg.MemoryFile)
	assert.Equal(t, filepath.Join(ws, "memory", "logs"), cfg.LogsDir)
	assert.Equal(t, 15, cfg.SearchLimit)
	assert.Equal(t, 7, cfg.RecentLogFiles)
	assert.Equal(t, "auto", cfg.RankerMode)
	assert.Equal(t, 30*time.Second, cfg.CDPTimeout)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	ws := t.TempDir()
	file := "search:\n  recent_log_files: 3\nranker:\n  mode: substring\ndb_path: /tmp/elsewhere.db\nsandbox:\n  timeout: 90\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws, "milo-memory.yaml"), []byte(file), 0o644))
	t.Setenv("MILO_SEARCH_LIMIT", "4")

	v := New()
	v.Set("workspace", ws)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RecentLogFiles)
	assert.Equal(t, "substring", cfg.RankerMode)
	assert.Equal(t, "/tmp/elsewhere.db", cfg.DBPath)
	assert.Equal(t, 4, cfg.SearchLimit)
	assert.Equal(t, 90*time.Second, cfg.SandboxTimeout)
	assert.Equal(t, filepath.Join(ws, "milo-memory.yaml"), cfg.ConfigFile)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	v := New()
	v.Set("workspace", t.TempDir())
	v.Set("cdp.timeout", "soon")

	_, err := Load(v)
	assert.Error(t, err)
}

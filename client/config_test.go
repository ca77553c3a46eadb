package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint: https://voxels.example.com
room: lobby
fps: 30
inverse_direction: true
controls:
  walk_speed: 7
keys:
  ghost: x
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://voxels.example.com", cfg.Endpoint)
	assert.Equal(t, "lobby", cfg.Room)
	assert.Equal(t, 30, cfg.FPS)
	assert.True(t, cfg.InverseDirection)
	assert.Equal(t, 7.0, cfg.Controls.WalkSpeed)
	assert.Equal(t, DefaultControlOptions().Gravity, cfg.Controls.Gravity)
	assert.Equal(t, "x", cfg.Keys.Ghost)
	assert.Equal(t, "f", cfg.Keys.Fly)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: \"\"\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	for _, reach := range []string{"-1", ".inf", ".nan", "65"} {
		require.NoError(t, os.WriteFile(path, []byte("reach: "+reach+"\n"), 0o644))
		_, err = LoadConfig(path)
		assert.Error(t, err, "reach %s", reach)
	}

	require.NoError(t, os.WriteFile(path, []byte("reach: 64\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, float64(MaxReach), cfg.Reach)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

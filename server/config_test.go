package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
addr: ":5000"
world:
  chunk_size: 8
  min_chunk: [-2, -2]
  max_chunk: [2, 2]
  generator: hills
  seed: 42
room:
  max_peers: 4
`))
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, 8, cfg.World.ChunkSize)
	assert.Equal(t, 64, cfg.World.MaxHeight)
	assert.Equal(t, [2]int{-2, -2}, cfg.World.MinChunk)
	assert.Equal(t, "hills", cfg.World.Generator)
	assert.Equal(t, int64(42), cfg.World.Seed)
	assert.Equal(t, DefaultLayers(), cfg.World.Layers)
	assert.Equal(t, 4, cfg.Room.MaxPeers)
	assert.Equal(t, DefaultConfig().Room.SendBuffer, cfg.Room.SendBuffer)
}

func TestLoadConfigShippedFile(t *testing.T) {
	cfg, err := LoadConfig("../configs/server.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultBlocks(), cfg.World.Blocks)
	assert.Equal(t, DefaultLayers(), cfg.World.Layers)
}

func TestLoadConfigValidation(t *testing.T) {
	for name, body := range map[string]string{
		"empty bounds":    "world:\n  min_chunk: [1, 0]\n  max_chunk: [0, 0]\n",
		"generator":       "world:\n  generator: caves\n",
		"layers too tall": "world:\n  max_height: 8\n",
		"bad yaml":        "world: [",
	} {
		_, err := LoadConfig(writeConfig(t, body))
		assert.Error(t, err, name)
	}
}

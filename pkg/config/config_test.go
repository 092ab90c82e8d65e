package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchwarp/internal/models"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	p, tp, err := cfg.PatchShapes()
	require.NoError(t, err)
	assert.Equal(t, models.Shape{48, 96, 96}, p)
	assert.Equal(t, p, tp)
	assert.Equal(t, 2.0, cfg.Sampling.Warp.AnisoFactor)
	assert.True(t, cfg.Sampling.Warp.LockZ)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Sampling, cfg.Sampling)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "patchwarp.yaml")
	cfg := DefaultConfig()
	cfg.Sampling.PatchShape = []int{16, 32, 32}
	cfg.Sampling.TargetPatchShape = []int{8, 16, 16}
	cfg.Sampling.DiscreteChannels = []int{0, 2}
	cfg.Sampling.Warp.NoXFlip = true
	cfg.Sampling.Seed = 1234
	cfg.Logging.JSON = true
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sampling:\n  maxRetries: 7\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Sampling.MaxRetries)
	assert.Equal(t, []int{48, 96, 96}, cfg.Sampling.PatchShape)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"two extents":    "sampling:\n  patchShape: [8, 8]\n",
		"zero extent":    "sampling:\n  patchShape: [8, 0, 8]\n",
		"bad target":     "sampling:\n  targetPatchShape: [1, 2, 3, 4]\n",
		"zero aniso":     "sampling:\n  warp:\n    anisoFactor: 0\n",
		"no retries":     "sampling:\n  maxRetries: 0\n",
		"negative label": "sampling:\n  discreteChannels: [-1]\n",
		"malformed yaml": "sampling: [\n",
		"wrong type":     "sampling:\n  seed: many\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestDiscreteMask(t *testing.T) {
	cfg := DefaultConfig()
	mask, err := cfg.DiscreteMask(3)
	require.NoError(t, err)
	assert.Nil(t, mask)

	cfg.Sampling.DiscreteChannels = []int{1}
	mask, err = cfg.DiscreteMask(3)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false}, mask)

	_, err = cfg.DiscreteMask(1)
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, DefaultConfig()))
	assert.Contains(t, buf.String(), "patchShape:")
	assert.Contains(t, buf.String(), "  warp:\n")
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

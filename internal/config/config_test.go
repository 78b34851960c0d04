package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6_000_000.0, cfg.Catalog.VectorMaxHeight)
	assert.Equal(t, "gebco_latest", cfg.Catalog.Bathymetry.Layer)
	assert.Equal(t, 2.5, cfg.Catalog.Mangroves.Visuals.Brightness)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	yml := `mode: production
catalog:
  vectorMaxHeight: 2500000
  metadataTTL: 90s
  bathymetry:
    visuals:
      alpha: 0.3
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Production, cfg.Mode)
	assert.Equal(t, 2_500_000.0, cfg.Catalog.VectorMaxHeight)
	assert.Equal(t, 0.3, cfg.Catalog.Bathymetry.Visuals.Alpha)
	assert.Equal(t, 90*time.Second, cfg.Catalog.MetadataTTL)
	// untouched fields keep their defaults
	assert.Equal(t, "gebco_latest", cfg.Catalog.Bathymetry.Layer)
	assert.Equal(t, "https://corsproxy.io/?", cfg.Catalog.CORSProxy)
}

func TestLoadRejectsBadMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: staging\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid mode")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsNegativeTTL(t *testing.T) {
	cfg := Default()
	cfg.Catalog.MetadataTTL = -time.Second
	assert.ErrorContains(t, cfg.Validate(), "metadataTTL")
}

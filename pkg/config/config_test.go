package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.4, 0.6, 0.8}, cfg.CutPoints)
	assert.Equal(t, map[int]int{1: 90, 2: 90, 3: 90, 4: 90, 5: 90}, cfg.ChurnThresholds)
	assert.Equal(t, 1, cfg.Ingest.SkipRows)
	assert.Equal(t, "sales_lines", cfg.Warehouse.SourceTable)

	loc, err := cfg.Ingest.TimeLocation()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestParse_Location(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse([]byte("ingest:\n  location: Europe/Paris\n"), &cfg))
	loc, err := cfg.Ingest.TimeLocation()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())

	cfg = Default()
	err = Parse([]byte("ingest:\n  location: Mars/Olympus\n"), &cfg)
	assert.ErrorContains(t, err, "ingest.location")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	raw := `
cut_points: [0.1, 0.3, 0.7, 0.9]
churn_thresholds:
  1: 180
  5: 45
ingest:
  skip_rows: 0
warehouse:
  profiles_table: rfm_2024
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.1, 0.3, 0.7, 0.9}, cfg.CutPoints)
	assert.Equal(t, map[int]int{1: 180, 2: 90, 3: 90, 4: 90, 5: 45}, cfg.ChurnThresholds)
	assert.Equal(t, 0, cfg.Ingest.SkipRows)
	assert.Equal(t, DefaultDateLayouts, cfg.Ingest.DateLayouts)
	assert.Equal(t, "rfm_2024", cfg.Warehouse.ProfilesTable)
	assert.Equal(t, "customer_churn", cfg.Warehouse.ChurnTable)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown field":    "cut_pointz: [0.2]",
		"three cut points": "cut_points: [0.2, 0.4, 0.6]",
		"zero threshold":   "churn_thresholds: {3: 0}",
		"unknown segment":  "churn_thresholds: {7: 30}",
		"negative skip":    "ingest: {skip_rows: -1}",
		"not yaml":         "cut_points: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, Parse([]byte(raw), &cfg))
		})
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse(nil, &cfg))
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "policy.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

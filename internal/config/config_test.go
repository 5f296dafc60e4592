package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyConfig()

	if cfg.GetSumoBinary() != "sumo" {
		t.Errorf("GetSumoBinary() = %q, want sumo", cfg.GetSumoBinary())
	}
	if cfg.GetSumoConfigFile() != "Test_Traffic.sumocfg" {
		t.Errorf("GetSumoConfigFile() = %q", cfg.GetSumoConfigFile())
	}
	if cfg.GetSteps() != 1000 {
		t.Errorf("GetSteps() = %d, want 1000", cfg.GetSteps())
	}
	if cfg.GetMetricsPath() != "metrics_results.csv" {
		t.Errorf("GetMetricsPath() = %q", cfg.GetMetricsPath())
	}
	if cfg.GetQueueThreshold() != 5 {
		t.Errorf("GetQueueThreshold() = %f, want 5", cfg.GetQueueThreshold())
	}
	if cfg.GetExtendSeconds() != 10 {
		t.Errorf("GetExtendSeconds() = %f, want 10", cfg.GetExtendSeconds())
	}
	if cfg.GetInterval() != 5*time.Second {
		t.Errorf("GetInterval() = %v, want 5s", cfg.GetInterval())
	}
	if cfg.GetResizeWidth() != 640 || cfg.GetResizeHeight() != 360 {
		t.Errorf("resize = %dx%d, want 640x360", cfg.GetResizeWidth(), cfg.GetResizeHeight())
	}
	if cfg.GetReferenceWidth() != 0 || cfg.GetReferenceHeight() != 0 {
		t.Errorf("reference = %dx%d, want 0x0 (native video size)", cfg.GetReferenceWidth(), cfg.GetReferenceHeight())
	}
	assert.Equal(t, []string{"car", "bus", "truck"}, cfg.GetAllowedClasses())
	assert.Equal(t, 2.0, cfg.GetBufferRadius())
	assert.Equal(t, DetectorYOLO, cfg.GetDetectorKind())
	assert.Equal(t, "traffic_summary_final.json", cfg.GetSummaryPath())
	assert.Equal(t, "metrics_results.csv", cfg.GetChartsInputPath())
	assert.Equal(t, "comparison.html", cfg.GetHTMLPath())
	assert.Equal(t, "", cfg.GetDatabasePath())
	assert.Equal(t, 60*time.Second, cfg.GetConnectTimeout())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "analysis.json", `{
  "simulation": {"steps": 3, "binary": "sumo-gui", "connect_timeout": "5s"},
  "policy": {"queue_threshold": 2.5},
  "video": {
    "interval": "10s",
    "allowed_classes": ["car"],
    "detector": {"kind": "http", "url": "http://detector:9000"},
    "regions": [
      {"name": "A", "kind": "lane", "points": [[0, 0], [10, 0], [10, 10]]}
    ]
  },
  "charts": {"output_dir": "plots"},
  "database_path": "runs.db"
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.GetSteps())
	assert.Equal(t, "sumo-gui", cfg.GetSumoBinary())
	assert.Equal(t, 5*time.Second, cfg.GetConnectTimeout())
	assert.Equal(t, 2.5, cfg.GetQueueThreshold())
	assert.Equal(t, 10.0, cfg.GetExtendSeconds())
	assert.Equal(t, 10*time.Second, cfg.GetInterval())
	assert.Equal(t, []string{"car"}, cfg.GetAllowedClasses())
	assert.Equal(t, DetectorHTTP, cfg.GetDetectorKind())
	assert.Equal(t, "http://detector:9000", cfg.GetDetectorURL())
	assert.Equal(t, filepath.Join("plots", "comparison.html"), cfg.GetHTMLPath())
	assert.Equal(t, "runs.db", cfg.GetDatabasePath())

	regions, err := cfg.GetRegions()
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "A", regions[0].Name)
	assert.Len(t, regions[0].Points, 3)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "config.yaml", `{}`},
		{"bad json", "bad.json", `{`},
		{"negative steps", "steps.json", `{"simulation": {"steps": -1}}`},
		{"bad interval", "interval.json", `{"video": {"interval": "five"}}`},
		{"zero interval", "zero.json", `{"video": {"interval": "0s"}}`},
		{"threshold range", "thr.json", `{"video": {"detection_threshold": 1.5}}`},
		{"unknown detector", "det.json", `{"video": {"detector": {"kind": "magic"}}}`},
		{"negative resize", "resize.json", `{"video": {"resize_width": -640}}`},
		{"zero extend", "extend.json", `{"policy": {"extend_seconds": 0}}`},
		{"half reference", "ref.json", `{"video": {"reference_width": 1920}}`},
		{"short region", "region.json", `{"video": {"regions": [{"name": "A", "points": [[0,0],[1,1]]}]}}`},
		{"duplicate region", "dup.json", `{"video": {"regions": [
			{"name": "A", "points": [[0,0],[1,0],[1,1]]},
			{"name": "A", "points": [[0,0],[1,0],[1,1]]}]}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.file, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.GetSteps())
}

func TestDefaultRegions(t *testing.T) {
	regions, err := DefaultRegions()
	require.NoError(t, err)
	require.Len(t, regions, 27)

	// lanes first, in table order, then the junction boxes
	assert.Equal(t, "S_W_b", regions[0].Name)
	assert.Equal(t, "N_2", regions[24].Name)
	assert.Equal(t, "Junction_1", regions[25].Name)
	assert.Equal(t, RegionIntersection, regions[26].Kind)
	assert.Equal(t, [2]int{304, 450}, regions[26].Points[3])

	require.NoError(t, validateRegions(regions))
}

func TestGetRegions_DefaultOrder(t *testing.T) {
	regions, err := EmptyConfig().GetRegions()
	require.NoError(t, err)
	require.Len(t, regions, 27)
	assert.Equal(t, "S_W_b", regions[0].Name)
	assert.Equal(t, "Junction_2", regions[26].Name)
}

// TestDefaultsFileMatchesBuiltins keeps config/analysis.defaults.json in step
// with the Get* fallbacks.
func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultConfigPath))
	require.NoError(t, err)

	def := EmptyConfig()
	assert.Equal(t, def.GetSteps(), cfg.GetSteps())
	assert.Equal(t, def.GetQueueThreshold(), cfg.GetQueueThreshold())
	assert.Equal(t, def.GetExtendSeconds(), cfg.GetExtendSeconds())
	assert.Equal(t, def.GetInterval(), cfg.GetInterval())
	assert.Equal(t, def.GetAllowedClasses(), cfg.GetAllowedClasses())
	assert.Equal(t, def.GetDetectionThreshold(), cfg.GetDetectionThreshold())
	assert.Equal(t, def.GetReferenceWidth(), cfg.GetReferenceWidth())
	assert.Equal(t, def.GetReferenceHeight(), cfg.GetReferenceHeight())
}

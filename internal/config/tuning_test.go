package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.VertScan == nil || *cfg.VertScan != 64 {
		t.Errorf("Expected VertScan 64, got %v", cfg.VertScan)
	}
	if cfg.HorzScan == nil || *cfg.HorzScan != 1800 {
		t.Errorf("Expected HorzScan 1800, got %v", cfg.HorzScan)
	}
	if cfg.HorzMergeThres == nil || *cfg.HorzMergeThres != 0.4 {
		t.Errorf("Expected HorzMergeThres 0.4, got %v", cfg.HorzMergeThres)
	}
	if cfg.Seed == nil || *cfg.Seed != 0 {
		t.Errorf("Expected Seed 0, got %v", cfg.Seed)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	path := writeFile(t, "test_config.json", `{
  "vert_scan": 32,
  "horz_scan": 2048,
  "min_vert_angle": -30.67,
  "max_vert_angle": 10.67,
  "horz_merge_thres": 0.25,
  "min_cluster_size": 3,
  "seed": 42
}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetVertScan() != 32 {
		t.Errorf("Expected VertScan 32, got %d", cfg.GetVertScan())
	}
	if cfg.GetHorzScan() != 2048 {
		t.Errorf("Expected HorzScan 2048, got %d", cfg.GetHorzScan())
	}
	if cfg.GetMinVertAngle() != -30.67 || cfg.GetMaxVertAngle() != 10.67 {
		t.Errorf("unexpected elevation bounds %f/%f", cfg.GetMinVertAngle(), cfg.GetMaxVertAngle())
	}
	if cfg.GetHorzMergeThres() != 0.25 {
		t.Errorf("Expected HorzMergeThres 0.25, got %f", cfg.GetHorzMergeThres())
	}
	if cfg.GetMinClusterSize() != 3 {
		t.Errorf("Expected MinClusterSize 3, got %d", cfg.GetMinClusterSize())
	}
	if cfg.GetSeed() != 42 {
		t.Errorf("Expected Seed 42, got %d", cfg.GetSeed())
	}
	// Absent keys keep defaults.
	if cfg.GetVertMergeThres() != 0.5 {
		t.Errorf("Expected default VertMergeThres 0.5, got %f", cfg.GetVertMergeThres())
	}
	if cfg.GetMaxClusterSize() != 30000 {
		t.Errorf("Expected default MaxClusterSize 30000, got %d", cfg.GetMaxClusterSize())
	}
}

func TestLoadTuningConfigYAML(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"nested", "nested.yaml", "travel:\n  vert_scan: 16\n  horz_merge_thres: 0.3\n"},
		{"flat", "flat.yml", "vert_scan: 16\nhorz_merge_thres: 0.3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadTuningConfig(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Failed to load config: %v", err)
			}
			if cfg.GetVertScan() != 16 {
				t.Errorf("Expected VertScan 16, got %d", cfg.GetVertScan())
			}
			if cfg.GetHorzMergeThres() != 0.3 {
				t.Errorf("Expected HorzMergeThres 0.3, got %f", cfg.GetHorzMergeThres())
			}
			if cfg.GetHorzScan() != 1800 {
				t.Errorf("Expected default HorzScan, got %d", cfg.GetHorzScan())
			}
		})
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	if _, err := LoadTuningConfig("/nonexistent/path/to/config.json"); err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"truncated json", "bad.json", `{"vert_scan": 64`},
		{"wrong json type", "type.json", `{"vert_scan": "many"}`},
		{"bad yaml", "bad.yaml", "travel: [unclosed\n"},
		{"fails validation", "neg.json", `{"min_range": -1}`},
		{"unknown json key", "typo.json", `{"horz_merge_thresh": 0.3}`},
		{"unknown yaml key", "typo.yaml", "horz_merge_thresh: 0.3\n"},
		{"unknown nested yaml key", "typo_nested.yml", "travel:\n  horz_merge_thresh: 0.3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadTuningConfig(writeFile(t, tt.file, tt.content)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestLoadTuningConfigRejectsExtension(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.toml")
	if err == nil || !strings.Contains(err.Error(), "extension") {
		t.Errorf("Expected extension error, got %v", err)
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.json")
	if err := os.WriteFile(path, make([]byte, 2*1024*1024), 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{"empty", EmptyTuningConfig(), false},
		{"zero rows", &TuningConfig{VertScan: ptrInt(0)}, true},
		{"zero columns", &TuningConfig{HorzScan: ptrInt(0)}, true},
		{"inverted elevation", &TuningConfig{MinVertAngle: ptrFloat64(5)}, true},
		{"negative min range", &TuningConfig{MinRange: ptrFloat64(-0.1)}, true},
		{"inverted range", &TuningConfig{MinRange: ptrFloat64(70)}, true},
		{"zero downsample", &TuningConfig{Downsample: ptrInt(0)}, true},
		{"negative threshold", &TuningConfig{VertMergeThres: ptrFloat64(-1)}, true},
		{"negative window", &TuningConfig{HorzSkipSize: ptrInt(-1)}, true},
		{"negative workers", &TuningConfig{Workers: ptrInt(-2)}, true},
		{"inverted sizes", &TuningConfig{MinClusterSize: ptrInt(50), MaxClusterSize: ptrInt(40)}, true},
		{"size filter disabled", &TuningConfig{MinClusterSize: ptrInt(50), MaxClusterSize: ptrInt(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../" + DefaultConfigPath)
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	// The defaults file and the compiled defaults must agree.
	want := DefaultTuningConfig()
	if cfg.GetVertScan() != want.GetVertScan() ||
		cfg.GetHorzScan() != want.GetHorzScan() ||
		cfg.GetMinVertAngle() != want.GetMinVertAngle() ||
		cfg.GetMaxVertAngle() != want.GetMaxVertAngle() ||
		cfg.GetMinRange() != want.GetMinRange() ||
		cfg.GetMaxRange() != want.GetMaxRange() ||
		cfg.GetDownsample() != want.GetDownsample() ||
		cfg.GetHorzMergeThres() != want.GetHorzMergeThres() ||
		cfg.GetVertMergeThres() != want.GetVertMergeThres() ||
		cfg.GetVertScanSize() != want.GetVertScanSize() ||
		cfg.GetHorzScanSize() != want.GetHorzScanSize() ||
		cfg.GetHorzSkipSize() != want.GetHorzSkipSize() ||
		cfg.GetHorzExtensionSize() != want.GetHorzExtensionSize() ||
		cfg.GetMinClusterSize() != want.GetMinClusterSize() ||
		cfg.GetMaxClusterSize() != want.GetMaxClusterSize() {
		t.Errorf("defaults file disagrees with compiled defaults: %+v", cfg)
	}
}

func TestLoadExampleYAMLFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/vlp16.example.yaml")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetVertScan() != 16 {
		t.Errorf("Expected 16, got %d", cfg.GetVertScan())
	}
	if cfg.GetMinVertAngle() != -15 || cfg.GetMaxVertAngle() != 15 {
		t.Errorf("unexpected elevation bounds %f/%f", cfg.GetMinVertAngle(), cfg.GetMaxVertAngle())
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetVertScan() != 64 {
		t.Errorf("Expected 64, got %d", cfg.GetVertScan())
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()
	if cfg.GetMinRange() != 1.0 || cfg.GetMaxRange() != 64.0 {
		t.Errorf("unexpected range defaults %f/%f", cfg.GetMinRange(), cfg.GetMaxRange())
	}
	if cfg.GetDownsample() != 1 {
		t.Errorf("GetDownsample() = %d, want 1", cfg.GetDownsample())
	}
	if cfg.GetVertScanSize() != 3 || cfg.GetHorzScanSize() != 5 ||
		cfg.GetHorzSkipSize() != 5 || cfg.GetHorzExtensionSize() != 5 {
		t.Error("unexpected window defaults")
	}
	if cfg.GetWorkers() != 0 {
		t.Errorf("GetWorkers() = %d, want 0", cfg.GetWorkers())
	}
}

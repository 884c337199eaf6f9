package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical segmentation defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/segmentation.defaults.json"

// maxConfigFileSize caps tuning files read from disk.
const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// TuningConfig represents the root configuration for segmentation
// parameters. Every field is optional: the Get* methods fall back to the
// compiled defaults (the KITTI HDL-64E geometry) for absent fields, so
// partial configs are safe.
type TuningConfig struct {
	// Sensor geometry
	VertScan     *int     `json:"vert_scan,omitempty" yaml:"vert_scan,omitempty"`
	HorzScan     *int     `json:"horz_scan,omitempty" yaml:"horz_scan,omitempty"`
	MinVertAngle *float64 `json:"min_vert_angle,omitempty" yaml:"min_vert_angle,omitempty"`
	MaxVertAngle *float64 `json:"max_vert_angle,omitempty" yaml:"max_vert_angle,omitempty"`

	// Projection filters
	MinRange   *float64 `json:"min_range,omitempty" yaml:"min_range,omitempty"`
	MaxRange   *float64 `json:"max_range,omitempty" yaml:"max_range,omitempty"`
	Downsample *int     `json:"downsample,omitempty" yaml:"downsample,omitempty"`

	// Merge thresholds (metres)
	HorzMergeThres *float64 `json:"horz_merge_thres,omitempty" yaml:"horz_merge_thres,omitempty"`
	VertMergeThres *float64 `json:"vert_merge_thres,omitempty" yaml:"vert_merge_thres,omitempty"`

	// Search windows (rows / columns)
	VertScanSize      *int `json:"vert_scan_size,omitempty" yaml:"vert_scan_size,omitempty"`
	HorzScanSize      *int `json:"horz_scan_size,omitempty" yaml:"horz_scan_size,omitempty"`
	HorzSkipSize      *int `json:"horz_skip_size,omitempty" yaml:"horz_skip_size,omitempty"`
	HorzExtensionSize *int `json:"horz_extension_size,omitempty" yaml:"horz_extension_size,omitempty"`

	// Output filter
	MinClusterSize *int `json:"min_cluster_size,omitempty" yaml:"min_cluster_size,omitempty"`
	MaxClusterSize *int `json:"max_cluster_size,omitempty" yaml:"max_cluster_size,omitempty"`

	// Engine
	Workers *int   `json:"workers,omitempty" yaml:"workers,omitempty"`
	Seed    *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// yamlFile accepts both a flat document and one whose values live under a
// top-level "travel" key.
type yamlFile struct {
	Travel yaml.Node `yaml:"travel"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the compiled defaults.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		VertScan:          ptrInt(e.GetVertScan()),
		HorzScan:          ptrInt(e.GetHorzScan()),
		MinVertAngle:      ptrFloat64(e.GetMinVertAngle()),
		MaxVertAngle:      ptrFloat64(e.GetMaxVertAngle()),
		MinRange:          ptrFloat64(e.GetMinRange()),
		MaxRange:          ptrFloat64(e.GetMaxRange()),
		Downsample:        ptrInt(e.GetDownsample()),
		HorzMergeThres:    ptrFloat64(e.GetHorzMergeThres()),
		VertMergeThres:    ptrFloat64(e.GetVertMergeThres()),
		VertScanSize:      ptrInt(e.GetVertScanSize()),
		HorzScanSize:      ptrInt(e.GetHorzScanSize()),
		HorzSkipSize:      ptrInt(e.GetHorzSkipSize()),
		HorzExtensionSize: ptrInt(e.GetHorzExtensionSize()),
		MinClusterSize:    ptrInt(e.GetMinClusterSize()),
		MaxClusterSize:    ptrInt(e.GetMaxClusterSize()),
		Workers:           ptrInt(e.GetWorkers()),
		Seed:              ptrInt64(e.GetSeed()),
	}
}

// LoadTuningConfig loads a TuningConfig from a .json, .yaml or .yml file.
// The file must be under the max file size. YAML files may nest their
// values under a top-level "travel" key.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *TuningConfig
	if ext == ".json" {
		cfg, err = ParseTuningJSON(data)
	} else {
		cfg, err = ParseTuningYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseTuningJSON decodes a flat JSON tuning document without validating it.
// Unknown keys are rejected.
func ParseTuningJSON(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

// ParseTuningYAML decodes a YAML tuning document without validating it.
// Unknown keys are rejected.
func ParseTuningYAML(data []byte) (*TuningConfig, error) {
	var nested yamlFile
	if err := yaml.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	doc := data
	if !nested.Travel.IsZero() {
		var err error
		if doc, err = yaml.Marshal(&nested.Travel); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	cfg := EmptyTuningConfig()
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/lidar/l4perception/
		"../../../../" + DefaultConfigPath,    // from internal/lidar/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
// Cross-field checks use the effective (defaulted) values.
func (c *TuningConfig) Validate() error {
	if c.VertScan != nil && *c.VertScan <= 0 {
		return fmt.Errorf("vert_scan must be positive, got %d", *c.VertScan)
	}
	if c.HorzScan != nil && *c.HorzScan <= 0 {
		return fmt.Errorf("horz_scan must be positive, got %d", *c.HorzScan)
	}
	if c.GetMinVertAngle() > c.GetMaxVertAngle() {
		return fmt.Errorf("min_vert_angle %f exceeds max_vert_angle %f", c.GetMinVertAngle(), c.GetMaxVertAngle())
	}
	if c.MinRange != nil && *c.MinRange < 0 {
		return fmt.Errorf("min_range must be non-negative, got %f", *c.MinRange)
	}
	if c.GetMinRange() > c.GetMaxRange() {
		return fmt.Errorf("min_range %f exceeds max_range %f", c.GetMinRange(), c.GetMaxRange())
	}
	if c.Downsample != nil && *c.Downsample < 1 {
		return fmt.Errorf("downsample must be at least 1, got %d", *c.Downsample)
	}
	if c.HorzMergeThres != nil && *c.HorzMergeThres < 0 {
		return fmt.Errorf("horz_merge_thres must be non-negative, got %f", *c.HorzMergeThres)
	}
	if c.VertMergeThres != nil && *c.VertMergeThres < 0 {
		return fmt.Errorf("vert_merge_thres must be non-negative, got %f", *c.VertMergeThres)
	}
	for name, v := range map[string]*int{
		"vert_scan_size":      c.VertScanSize,
		"horz_scan_size":      c.HorzScanSize,
		"horz_skip_size":      c.HorzSkipSize,
		"horz_extension_size": c.HorzExtensionSize,
		"min_cluster_size":    c.MinClusterSize,
		"max_cluster_size":    c.MaxClusterSize,
		"workers":             c.Workers,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, *v)
		}
	}
	if lo, hi := c.GetMinClusterSize(), c.GetMaxClusterSize(); lo > 0 && hi > 0 && lo > hi {
		return fmt.Errorf("min_cluster_size %d exceeds max_cluster_size %d", lo, hi)
	}
	return nil
}

// GetVertScan returns the vert_scan value or the default.
func (c *TuningConfig) GetVertScan() int {
	if c.VertScan == nil {
		return 64
	}
	return *c.VertScan
}

// GetHorzScan returns the horz_scan value or the default.
func (c *TuningConfig) GetHorzScan() int {
	if c.HorzScan == nil {
		return 1800
	}
	return *c.HorzScan
}

// GetMinVertAngle returns the min_vert_angle value or the default.
func (c *TuningConfig) GetMinVertAngle() float64 {
	if c.MinVertAngle == nil {
		return -24.8
	}
	return *c.MinVertAngle
}

// GetMaxVertAngle returns the max_vert_angle value or the default.
func (c *TuningConfig) GetMaxVertAngle() float64 {
	if c.MaxVertAngle == nil {
		return 2.0
	}
	return *c.MaxVertAngle
}

// GetMinRange returns the min_range value or the default.
func (c *TuningConfig) GetMinRange() float64 {
	if c.MinRange == nil {
		return 1.0
	}
	return *c.MinRange
}

// GetMaxRange returns the max_range value or the default.
func (c *TuningConfig) GetMaxRange() float64 {
	if c.MaxRange == nil {
		return 64.0
	}
	return *c.MaxRange
}

// GetDownsample returns the downsample value or the default.
func (c *TuningConfig) GetDownsample() int {
	if c.Downsample == nil {
		return 1
	}
	return *c.Downsample
}

// GetHorzMergeThres returns the horz_merge_thres value or the default.
func (c *TuningConfig) GetHorzMergeThres() float64 {
	if c.HorzMergeThres == nil {
		return 0.4
	}
	return *c.HorzMergeThres
}

// GetVertMergeThres returns the vert_merge_thres value or the default.
func (c *TuningConfig) GetVertMergeThres() float64 {
	if c.VertMergeThres == nil {
		return 0.5
	}
	return *c.VertMergeThres
}

// GetVertScanSize returns the vert_scan_size value or the default.
func (c *TuningConfig) GetVertScanSize() int {
	if c.VertScanSize == nil {
		return 3
	}
	return *c.VertScanSize
}

// GetHorzScanSize returns the horz_scan_size value or the default.
func (c *TuningConfig) GetHorzScanSize() int {
	if c.HorzScanSize == nil {
		return 5
	}
	return *c.HorzScanSize
}

// GetHorzSkipSize returns the horz_skip_size value or the default.
func (c *TuningConfig) GetHorzSkipSize() int {
	if c.HorzSkipSize == nil {
		return 5
	}
	return *c.HorzSkipSize
}

// GetHorzExtensionSize returns the horz_extension_size value or the default.
func (c *TuningConfig) GetHorzExtensionSize() int {
	if c.HorzExtensionSize == nil {
		return 5
	}
	return *c.HorzExtensionSize
}

// GetMinClusterSize returns the min_cluster_size value or the default.
func (c *TuningConfig) GetMinClusterSize() int {
	if c.MinClusterSize == nil {
		return 10
	}
	return *c.MinClusterSize
}

// GetMaxClusterSize returns the max_cluster_size value or the default.
func (c *TuningConfig) GetMaxClusterSize() int {
	if c.MaxClusterSize == nil {
		return 30000
	}
	return *c.MaxClusterSize
}

// GetWorkers returns the workers value or the default (0 means GOMAXPROCS).
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetSeed returns the seed value or the default (0 means time-seeded).
func (c *TuningConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// Detector kinds understood by the video aggregator.
const (
	DetectorYOLO   = "yolo"
	DetectorHTTP   = "http"
	DetectorReplay = "replay"
)

// Config is the root configuration shared by the three tools. Every field is
// optional; the Get* accessors fall back to the built-in defaults so partial
// files are safe.
type Config struct {
	Simulation SimulationConfig `json:"simulation"`
	Policy     PolicyConfig     `json:"policy"`
	Video      VideoConfig      `json:"video"`
	Charts     ChartsConfig     `json:"charts"`

	// DatabasePath enables the SQLite results store when set.
	DatabasePath *string `json:"database_path,omitempty"`
}

// SimulationConfig drives the baseline-vs-logic comparison.
type SimulationConfig struct {
	Binary         *string `json:"binary,omitempty"`
	ConfigFile     *string `json:"config_file,omitempty"`
	Steps          *int    `json:"steps,omitempty"`
	RemotePort     *int    `json:"remote_port,omitempty"`
	ConnectTimeout *string `json:"connect_timeout,omitempty"` // duration string like "60s"
	OutputPath     *string `json:"output_path,omitempty"`
}

// PolicyConfig holds the rule-based signal controller thresholds.
type PolicyConfig struct {
	QueueThreshold *float64 `json:"queue_threshold,omitempty"`
	ExtendSeconds  *float64 `json:"extend_seconds,omitempty"`
}

// VideoConfig drives the drone footage aggregator.
type VideoConfig struct {
	Path               *string        `json:"path,omitempty"`
	OutputPath         *string        `json:"output_path,omitempty"`
	Interval           *string        `json:"interval,omitempty"` // duration string like "5s"
	ResizeWidth        *int           `json:"resize_width,omitempty"`
	ResizeHeight       *int           `json:"resize_height,omitempty"`
	ReferenceWidth     *int           `json:"reference_width,omitempty"`
	ReferenceHeight    *int           `json:"reference_height,omitempty"`
	AllowedClasses     []string       `json:"allowed_classes,omitempty"`
	DetectionThreshold *float64       `json:"detection_threshold,omitempty"`
	BufferRadius       *float64       `json:"buffer_radius,omitempty"`
	Detector           DetectorConfig `json:"detector"`

	// Regions is matched in order; lanes should precede intersections.
	Regions []RegionConfig `json:"regions,omitempty"`
}

// DetectorConfig selects and parameterises the object detector.
type DetectorConfig struct {
	Kind       *string `json:"kind,omitempty"`
	ModelPath  *string `json:"model_path,omitempty"`
	URL        *string `json:"url,omitempty"`
	ReplayPath *string `json:"replay_path,omitempty"`
	Timeout    *string `json:"timeout,omitempty"`
}

// ChartsConfig controls where the comparison charts are read from and written to.
type ChartsConfig struct {
	InputPath *string `json:"input_path,omitempty"`
	OutputDir *string `json:"output_dir,omitempty"`
	HTMLPath  *string `json:"html_path,omitempty"`
}

// EmptyConfig returns a Config with all fields unset.
func EmptyConfig() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file.
// The file must have a .json extension and be at most 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it is non-empty and returns an empty (all
// defaults) config otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return EmptyConfig(), nil
	}
	return Load(path)
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.Steps != nil && *s.Steps < 0 {
		return fmt.Errorf("simulation.steps must be non-negative, got %d", *s.Steps)
	}
	if s.RemotePort != nil && (*s.RemotePort < 0 || *s.RemotePort > 65535) {
		return fmt.Errorf("simulation.remote_port out of range: %d", *s.RemotePort)
	}
	if err := validateDuration("simulation.connect_timeout", s.ConnectTimeout); err != nil {
		return err
	}

	p := c.Policy
	if p.QueueThreshold != nil && *p.QueueThreshold < 0 {
		return fmt.Errorf("policy.queue_threshold must be non-negative, got %f", *p.QueueThreshold)
	}
	if p.ExtendSeconds != nil && *p.ExtendSeconds <= 0 {
		return fmt.Errorf("policy.extend_seconds must be positive, got %f", *p.ExtendSeconds)
	}

	v := c.Video
	if err := validateDuration("video.interval", v.Interval); err != nil {
		return err
	}
	if v.Interval != nil && *v.Interval != "" {
		if d, _ := time.ParseDuration(*v.Interval); d <= 0 {
			return fmt.Errorf("video.interval must be positive, got %s", *v.Interval)
		}
	}
	for name, val := range map[string]*int{
		"video.resize_width":     v.ResizeWidth,
		"video.resize_height":    v.ResizeHeight,
		"video.reference_width":  v.ReferenceWidth,
		"video.reference_height": v.ReferenceHeight,
	} {
		if val != nil && *val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *val)
		}
	}
	if (v.ReferenceWidth == nil) != (v.ReferenceHeight == nil) {
		return fmt.Errorf("video.reference_width and video.reference_height must be set together")
	}
	if v.DetectionThreshold != nil && (*v.DetectionThreshold < 0 || *v.DetectionThreshold > 1) {
		return fmt.Errorf("video.detection_threshold must be between 0 and 1, got %f", *v.DetectionThreshold)
	}
	if v.BufferRadius != nil && *v.BufferRadius < 0 {
		return fmt.Errorf("video.buffer_radius must be non-negative, got %f", *v.BufferRadius)
	}
	if v.Detector.Kind != nil {
		switch *v.Detector.Kind {
		case DetectorYOLO, DetectorHTTP, DetectorReplay:
		default:
			return fmt.Errorf("unknown video.detector.kind %q", *v.Detector.Kind)
		}
	}
	if err := validateDuration("video.detector.timeout", v.Detector.Timeout); err != nil {
		return err
	}
	if err := validateRegions(v.Regions); err != nil {
		return err
	}

	return nil
}

func validateDuration(field string, val *string) error {
	if val == nil || *val == "" {
		return nil
	}
	if _, err := time.ParseDuration(*val); err != nil {
		return fmt.Errorf("invalid %s '%s': %w", field, *val, err)
	}
	return nil
}

func getString(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetSumoBinary returns the simulator executable.
func (c *Config) GetSumoBinary() string {
	return getString(c.Simulation.Binary, "sumo")
}

// GetSumoConfigFile returns the .sumocfg scenario file.
func (c *Config) GetSumoConfigFile() string {
	return getString(c.Simulation.ConfigFile, "Test_Traffic.sumocfg")
}

// GetSteps returns the number of simulation steps per mode.
func (c *Config) GetSteps() int {
	if c.Simulation.Steps == nil {
		return 1000
	}
	return *c.Simulation.Steps
}

// GetRemotePort returns the TraCI port; 0 means pick a free port.
func (c *Config) GetRemotePort() int {
	if c.Simulation.RemotePort == nil {
		return 0
	}
	return *c.Simulation.RemotePort
}

// GetConnectTimeout returns how long to wait for a launched simulator to accept
// the control connection.
func (c *Config) GetConnectTimeout() time.Duration {
	return getDuration(c.Simulation.ConnectTimeout, 60*time.Second)
}

// GetMetricsPath returns the CSV file the comparison runner writes.
func (c *Config) GetMetricsPath() string {
	return getString(c.Simulation.OutputPath, "metrics_results.csv")
}

// GetQueueThreshold returns the mean controlled-lane vehicle count above which
// a green phase is extended.
func (c *Config) GetQueueThreshold() float64 {
	if c.Policy.QueueThreshold == nil {
		return 5
	}
	return *c.Policy.QueueThreshold
}

// GetExtendSeconds returns the duration assigned to an extended phase.
func (c *Config) GetExtendSeconds() float64 {
	if c.Policy.ExtendSeconds == nil {
		return 10
	}
	return *c.Policy.ExtendSeconds
}

// GetVideoPath returns the footage to analyze.
func (c *Config) GetVideoPath() string {
	return getString(c.Video.Path, "yolo_drone_output.avi")
}

// GetSummaryPath returns the JSON file the aggregator writes.
func (c *Config) GetSummaryPath() string {
	return getString(c.Video.OutputPath, "traffic_summary_final.json")
}

// GetInterval returns the width of a reporting bucket.
func (c *Config) GetInterval() time.Duration {
	return getDuration(c.Video.Interval, 5*time.Second)
}

// GetResizeWidth returns the detector input width.
func (c *Config) GetResizeWidth() int {
	if c.Video.ResizeWidth == nil {
		return 640
	}
	return *c.Video.ResizeWidth
}

// GetResizeHeight returns the detector input height.
func (c *Config) GetResizeHeight() int {
	if c.Video.ResizeHeight == nil {
		return 360
	}
	return *c.Video.ResizeHeight
}

// GetReferenceWidth returns the width the region table was drawn at, or 0
// when the regions are in the video's native resolution.
func (c *Config) GetReferenceWidth() int {
	if c.Video.ReferenceWidth == nil {
		return 0
	}
	return *c.Video.ReferenceWidth
}

// GetReferenceHeight returns the height the region table was drawn at, or 0
// when the regions are in the video's native resolution.
func (c *Config) GetReferenceHeight() int {
	if c.Video.ReferenceHeight == nil {
		return 0
	}
	return *c.Video.ReferenceHeight
}

// GetAllowedClasses returns the detector labels counted as vehicles.
func (c *Config) GetAllowedClasses() []string {
	if len(c.Video.AllowedClasses) == 0 {
		return []string{"car", "bus", "truck"}
	}
	out := make([]string, len(c.Video.AllowedClasses))
	copy(out, c.Video.AllowedClasses)
	return out
}

// GetDetectionThreshold returns the minimum detector confidence.
func (c *Config) GetDetectionThreshold() float64 {
	if c.Video.DetectionThreshold == nil {
		return 0.25
	}
	return *c.Video.DetectionThreshold
}

// GetBufferRadius returns the region buffer radius in resized pixels.
func (c *Config) GetBufferRadius() float64 {
	if c.Video.BufferRadius == nil {
		return 2
	}
	return *c.Video.BufferRadius
}

// GetDetectorKind returns one of DetectorYOLO, DetectorHTTP or DetectorReplay.
func (c *Config) GetDetectorKind() string {
	return getString(c.Video.Detector.Kind, DetectorYOLO)
}

// GetModelPath returns the ONNX model used by the YOLO detector.
func (c *Config) GetModelPath() string {
	return getString(c.Video.Detector.ModelPath, "yolov8n.onnx")
}

// GetDetectorURL returns the base URL of the HTTP detection service.
func (c *Config) GetDetectorURL() string {
	return getString(c.Video.Detector.URL, "http://127.0.0.1:8000")
}

// GetReplayPath returns the CSV of precomputed detections.
func (c *Config) GetReplayPath() string {
	return getString(c.Video.Detector.ReplayPath, "detections.csv")
}

// GetDetectorTimeout returns the per-frame HTTP detector timeout.
func (c *Config) GetDetectorTimeout() time.Duration {
	return getDuration(c.Video.Detector.Timeout, 30*time.Second)
}

// GetChartsInputPath returns the metrics CSV read by the chart renderer.
func (c *Config) GetChartsInputPath() string {
	return getString(c.Charts.InputPath, c.GetMetricsPath())
}

// GetChartsOutputDir returns the directory the PNG charts are written to.
func (c *Config) GetChartsOutputDir() string {
	return getString(c.Charts.OutputDir, ".")
}

// GetHTMLPath returns the interactive chart page path.
func (c *Config) GetHTMLPath() string {
	return getString(c.Charts.HTMLPath, filepath.Join(c.GetChartsOutputDir(), "comparison.html"))
}

// GetDatabasePath returns the SQLite path, or "" when the store is disabled.
func (c *Config) GetDatabasePath() string {
	return getString(c.DatabasePath, "")
}

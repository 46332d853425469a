// Package config provides configuration management for faceattend.
// It loads configuration from YAML files with sensible defaults and lets
// FACEATTEND_* environment variables (optionally from a .env file) override
// the deployment-specific keys.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all faceattend configuration.
type Config struct {
	Camera       CameraConfig       `yaml:"camera"`
	Detection    DetectionConfig    `yaml:"detection"`
	Recognition  RecognitionConfig  `yaml:"recognition"`
	Enrollment   EnrollmentConfig   `yaml:"enrollment"`
	Verification VerificationConfig `yaml:"verification"`
	Preview      PreviewConfig      `yaml:"preview"`
	Storage      StorageConfig      `yaml:"storage"`
	Ledger       LedgerConfig       `yaml:"ledger"`
	Groups       []string           `yaml:"groups"`
	Subjects     []string           `yaml:"subjects"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// CameraConfig holds camera settings.
type CameraConfig struct {
	Device         string        `yaml:"device"`
	Width          int           `yaml:"width"`
	Height         int           `yaml:"height"`
	ReadRetryDelay time.Duration `yaml:"read_retry_delay"`
}

// DetectionConfig holds face detector settings.
type DetectionConfig struct {
	Backend      string  `yaml:"backend"` // "cascade" or "dlib"
	CascadePath  string  `yaml:"cascade_path"`
	ModelPath    string  `yaml:"model_path"` // dlib models directory
	MinSize      int     `yaml:"min_size"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`
	Primary      string  `yaml:"primary"` // "largest" or "first"
}

// RecognitionConfig holds LBPH classifier settings.
// Threshold is the single accept/reject boundary: lower is stricter.
type RecognitionConfig struct {
	Threshold float64 `yaml:"threshold"`
	Radius    int     `yaml:"radius"`
	Neighbors int     `yaml:"neighbors"`
	GridX     int     `yaml:"grid_x"`
	GridY     int     `yaml:"grid_y"`
}

// EnrollmentConfig holds sample capture settings.
type EnrollmentConfig struct {
	TargetCount int           `yaml:"target_count"`
	FrameDelay  time.Duration `yaml:"frame_delay"`
}

// VerificationConfig holds live verification settings.
type VerificationConfig struct {
	ConfirmationWindow time.Duration `yaml:"confirmation_window"`
	ConfirmationPolicy string        `yaml:"confirmation_policy"` // "sticky" or "contiguous"
	FrameDelay         time.Duration `yaml:"frame_delay"`
	Timeout            time.Duration `yaml:"timeout"` // 0 disables
	SaveEvidence       bool          `yaml:"save_evidence"`
	EvidenceDir        string        `yaml:"evidence_dir"`
}

// PreviewConfig holds operator feedback window settings.
type PreviewConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	AbortKey string `yaml:"abort_key"`
}

// StorageConfig holds sample store settings.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// LedgerConfig holds attendance ledger settings.
type LedgerConfig struct {
	Backend string `yaml:"backend"` // "csv" or "sqlite"
	Path    string `yaml:"path"`
}

// MetricsConfig holds the optional Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// DefaultGroups are the departments identities can be registered under.
var DefaultGroups = []string{
	"Computer Engineering",
	"Chemical Engineering",
	"Control Engineering",
	"Communication Engineering",
}

// DefaultSubjects are the subjects attendance can be recorded for.
var DefaultSubjects = []string{
	"Mathematics", "Physics", "Chemistry", "Biology", "Computer Science",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/faceattend")
	return &Config{
		Camera: CameraConfig{
			Device:         "0",
			Width:          640,
			Height:         480,
			ReadRetryDelay: 10 * time.Millisecond,
		},
		Detection: DetectionConfig{
			Backend:      "cascade",
			CascadePath:  "/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
			ModelPath:    filepath.Join(dataDir, "models"),
			MinSize:      100,
			ScaleFactor:  1.1,
			MinNeighbors: 5,
			Primary:      "largest",
		},
		Recognition: RecognitionConfig{
			Threshold: 50,
			Radius:    1,
			Neighbors: 8,
			GridX:     8,
			GridY:     8,
		},
		Enrollment: EnrollmentConfig{
			TargetCount: 10,
			FrameDelay:  100 * time.Millisecond,
		},
		Verification: VerificationConfig{
			ConfirmationWindow: 3 * time.Second,
			ConfirmationPolicy: "sticky",
			FrameDelay:         time.Millisecond,
			EvidenceDir:        filepath.Join(dataDir, "evidence"),
		},
		Preview: PreviewConfig{
			Enabled:  true,
			Width:    800,
			Height:   600,
			AbortKey: "q",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Ledger: LedgerConfig{
			Backend: "csv",
			Path:    filepath.Join(dataDir, "attendance.csv"),
		},
		Groups:   append([]string(nil), DefaultGroups...),
		Subjects: append([]string(nil), DefaultSubjects...),
		Logging: LoggingConfig{
			Level:  "info",
			File:   filepath.Join(dataDir, "faceattend.log"),
			Format: "text",
		},
	}
}

// Load loads configuration from the specified file on top of the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, err
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	// Try system config first
	if _, err := os.Stat("/etc/faceattend/faceattend.yaml"); err == nil {
		return Load("/etc/faceattend/faceattend.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/faceattend/faceattend.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// ApplyEnv loads the given .env files (missing files are ignored) and then
// applies FACEATTEND_* overrides from the process environment.
func (c *Config) ApplyEnv(envFiles ...string) error {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	if v := os.Getenv("FACEATTEND_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("FACEATTEND_CAMERA_DEVICE"); v != "" {
		c.Camera.Device = v
	}
	if v := os.Getenv("FACEATTEND_CASCADE_PATH"); v != "" {
		c.Detection.CascadePath = v
	}
	if v := os.Getenv("FACEATTEND_LEDGER_PATH"); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv("FACEATTEND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FACEATTEND_LBPH_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid FACEATTEND_LBPH_THRESHOLD %q: %w", v, err)
		}
		c.Recognition.Threshold = threshold
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera resolution: %dx%d", c.Camera.Width, c.Camera.Height)
	}

	validBackends := map[string]bool{"cascade": true, "dlib": true}
	if !validBackends[c.Detection.Backend] {
		return fmt.Errorf("invalid detection backend: %s (must be cascade or dlib)", c.Detection.Backend)
	}
	if c.Detection.MinSize <= 0 {
		return fmt.Errorf("min_size must be positive, got %d", c.Detection.MinSize)
	}
	if c.Detection.ScaleFactor <= 1 {
		return fmt.Errorf("scale_factor must be greater than 1, got %f", c.Detection.ScaleFactor)
	}
	if c.Detection.Primary != "largest" && c.Detection.Primary != "first" {
		return fmt.Errorf("invalid primary region policy: %s (must be largest or first)", c.Detection.Primary)
	}

	if c.Recognition.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %f", c.Recognition.Threshold)
	}
	if c.Recognition.Radius <= 0 {
		return fmt.Errorf("radius must be positive, got %d", c.Recognition.Radius)
	}
	if c.Recognition.Neighbors <= 0 || c.Recognition.Neighbors > 16 {
		return fmt.Errorf("neighbors must be between 1 and 16, got %d", c.Recognition.Neighbors)
	}
	if c.Recognition.GridX <= 0 || c.Recognition.GridY <= 0 {
		return fmt.Errorf("invalid LBPH grid: %dx%d", c.Recognition.GridX, c.Recognition.GridY)
	}

	if c.Enrollment.TargetCount <= 0 {
		return fmt.Errorf("target_count must be positive, got %d", c.Enrollment.TargetCount)
	}

	if c.Verification.ConfirmationWindow < 0 {
		return fmt.Errorf("confirmation_window must not be negative, got %s", c.Verification.ConfirmationWindow)
	}
	if c.Verification.ConfirmationPolicy != "sticky" && c.Verification.ConfirmationPolicy != "contiguous" {
		return fmt.Errorf("invalid confirmation policy: %s (must be sticky or contiguous)", c.Verification.ConfirmationPolicy)
	}
	if c.Verification.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Verification.Timeout)
	}

	if len(c.Preview.AbortKey) != 1 {
		return fmt.Errorf("abort_key must be a single character, got %q", c.Preview.AbortKey)
	}

	if c.Ledger.Backend != "csv" && c.Ledger.Backend != "sqlite" {
		return fmt.Errorf("invalid ledger backend: %s (must be csv or sqlite)", c.Ledger.Backend)
	}

	if len(c.Groups) == 0 {
		return errors.New("at least one group must be configured")
	}
	if len(c.Subjects) == 0 {
		return errors.New("at least one subject must be configured")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Detection.CascadePath = ExpandPath(c.Detection.CascadePath)
	c.Detection.ModelPath = ExpandPath(c.Detection.ModelPath)
	c.Verification.EvidenceDir = ExpandPath(c.Verification.EvidenceDir)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Ledger.Path = ExpandPath(c.Ledger.Path)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates necessary directories for samples, evidence, the ledger and logs.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.SamplesDir(), 0700); err != nil {
		return fmt.Errorf("failed to create samples directory: %w", err)
	}

	if c.Verification.SaveEvidence {
		if err := os.MkdirAll(c.Verification.EvidenceDir, 0700); err != nil {
			return fmt.Errorf("failed to create evidence directory: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(c.Ledger.Path), 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	if c.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Logging.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	return nil
}

// SamplesDir returns the root directory of the sample store.
func (c *Config) SamplesDir() string {
	return filepath.Join(c.Storage.DataDir, "samples")
}

// HasGroup reports whether group is one of the configured groups.
func (c *Config) HasGroup(group string) bool {
	return containsString(c.Groups, group)
}

// HasSubject reports whether subject is one of the configured subjects.
func (c *Config) HasSubject(subject string) bool {
	return containsString(c.Subjects, subject)
}

// AbortKeyCode returns the key code that aborts a capture loop.
func (c *Config) AbortKeyCode() int {
	if c.Preview.AbortKey == "" {
		return 'q'
	}
	return int(c.Preview.AbortKey[0])
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

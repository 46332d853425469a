package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Camera.Device != "0" {
		t.Errorf("expected camera device 0, got %s", cfg.Camera.Device)
	}
	if cfg.Detection.MinSize != 100 {
		t.Errorf("expected min face size 100, got %d", cfg.Detection.MinSize)
	}
	if cfg.Detection.ScaleFactor != 1.1 || cfg.Detection.MinNeighbors != 5 {
		t.Errorf("unexpected cascade parameters: %f/%d", cfg.Detection.ScaleFactor, cfg.Detection.MinNeighbors)
	}
	if cfg.Recognition.Threshold != 50 {
		t.Errorf("expected LBPH threshold 50, got %f", cfg.Recognition.Threshold)
	}
	if cfg.Enrollment.TargetCount != 10 {
		t.Errorf("expected target count 10, got %d", cfg.Enrollment.TargetCount)
	}
	if cfg.Enrollment.FrameDelay != 100*time.Millisecond {
		t.Errorf("expected enrollment frame delay 100ms, got %s", cfg.Enrollment.FrameDelay)
	}
	if cfg.Verification.ConfirmationWindow != 3*time.Second {
		t.Errorf("expected confirmation window 3s, got %s", cfg.Verification.ConfirmationWindow)
	}
	if cfg.Verification.ConfirmationPolicy != "sticky" {
		t.Errorf("expected sticky confirmation policy, got %s", cfg.Verification.ConfirmationPolicy)
	}
	if cfg.Ledger.Backend != "csv" {
		t.Errorf("expected csv ledger, got %s", cfg.Ledger.Backend)
	}
	if len(cfg.Groups) != 4 || cfg.Groups[0] != "Computer Engineering" {
		t.Errorf("unexpected default groups: %v", cfg.Groups)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDefaultConfig_GroupsAreCopied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Groups[0] = "Mutated"

	if DefaultGroups[0] != "Computer Engineering" {
		t.Error("mutating a config must not change DefaultGroups")
	}
}

func TestLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "faceattend.yaml")

	configContent := `
camera:
  device: /dev/video1
  width: 1280
  height: 720

detection:
  backend: dlib
  min_size: 120

recognition:
  threshold: 42.5

enrollment:
  target_count: 20
  frame_delay: 250ms

verification:
  confirmation_window: 5s
  confirmation_policy: contiguous
  timeout: 30s

groups:
  - Physics Lab

ledger:
  backend: sqlite
  path: /var/lib/faceattend/attendance.db

logging:
  level: debug
  format: json
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Camera.Device != "/dev/video1" {
		t.Errorf("expected camera device /dev/video1, got %s", cfg.Camera.Device)
	}
	if cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Detection.Backend != "dlib" || cfg.Detection.MinSize != 120 {
		t.Errorf("unexpected detection config: %+v", cfg.Detection)
	}
	// Unset keys keep their defaults.
	if cfg.Detection.ScaleFactor != 1.1 {
		t.Errorf("expected default scale factor to survive, got %f", cfg.Detection.ScaleFactor)
	}
	if cfg.Recognition.Threshold != 42.5 {
		t.Errorf("expected threshold 42.5, got %f", cfg.Recognition.Threshold)
	}
	if cfg.Enrollment.FrameDelay != 250*time.Millisecond {
		t.Errorf("expected frame delay 250ms, got %s", cfg.Enrollment.FrameDelay)
	}
	if cfg.Verification.ConfirmationWindow != 5*time.Second || cfg.Verification.Timeout != 30*time.Second {
		t.Errorf("unexpected verification durations: %+v", cfg.Verification)
	}
	if cfg.Verification.ConfirmationPolicy != "contiguous" {
		t.Errorf("expected contiguous policy, got %s", cfg.Verification.ConfirmationPolicy)
	}
	if len(cfg.Groups) != 1 || cfg.Groups[0] != "Physics Lab" {
		t.Errorf("expected groups to be replaced, got %v", cfg.Groups)
	}
	if cfg.Ledger.Backend != "sqlite" {
		t.Errorf("expected sqlite ledger, got %s", cfg.Ledger.Backend)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")

	if cfg == nil {
		t.Error("expected default config on error")
	}
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := Load(configPath)
	if cfg == nil {
		t.Error("expected default config on error")
	}
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "FACEATTEND_DATA_DIR=/srv/faceattend\nFACEATTEND_LBPH_THRESHOLD=35\n"
	if err := os.WriteFile(envFile, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("FACEATTEND_DATA_DIR", "")
	t.Setenv("FACEATTEND_LBPH_THRESHOLD", "")
	os.Unsetenv("FACEATTEND_DATA_DIR")
	os.Unsetenv("FACEATTEND_LBPH_THRESHOLD")
	t.Setenv("FACEATTEND_CAMERA_DEVICE", "/dev/video4")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(envFile, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Storage.DataDir != "/srv/faceattend" {
		t.Errorf("expected data dir from .env, got %s", cfg.Storage.DataDir)
	}
	if cfg.Recognition.Threshold != 35 {
		t.Errorf("expected threshold 35 from .env, got %f", cfg.Recognition.Threshold)
	}
	if cfg.Camera.Device != "/dev/video4" {
		t.Errorf("expected camera device from environment, got %s", cfg.Camera.Device)
	}
}

func TestApplyEnv_InvalidThreshold(t *testing.T) {
	t.Setenv("FACEATTEND_LBPH_THRESHOLD", "strict")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for non-numeric threshold")
	}
}

func TestExpandPath(t *testing.T) {
	if got := ExpandPath("~/test/path"); strings.HasPrefix(got, "~") {
		t.Errorf("tilde was not expanded: %s", got)
	}
	if got := ExpandPath("/absolute/path"); got != "/absolute/path" {
		t.Errorf("unexpected expansion: %s", got)
	}
	t.Setenv("FACEATTEND_TEST_ROOT", "/opt/fa")
	if got := ExpandPath("$FACEATTEND_TEST_ROOT/samples"); got != "/opt/fa/samples" {
		t.Errorf("env var not expanded: %s", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError bool
		errorMsg  string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:      "invalid camera width",
			modify:    func(c *Config) { c.Camera.Width = 0 },
			wantError: true,
			errorMsg:  "invalid camera resolution",
		},
		{
			name:      "invalid detection backend",
			modify:    func(c *Config) { c.Detection.Backend = "yolo" },
			wantError: true,
			errorMsg:  "invalid detection backend",
		},
		{
			name:      "min size zero",
			modify:    func(c *Config) { c.Detection.MinSize = 0 },
			wantError: true,
			errorMsg:  "min_size must be positive",
		},
		{
			name:      "scale factor not above one",
			modify:    func(c *Config) { c.Detection.ScaleFactor = 1 },
			wantError: true,
			errorMsg:  "scale_factor must be greater than 1",
		},
		{
			name:      "invalid primary policy",
			modify:    func(c *Config) { c.Detection.Primary = "smallest" },
			wantError: true,
			errorMsg:  "invalid primary region policy",
		},
		{
			name:      "threshold zero",
			modify:    func(c *Config) { c.Recognition.Threshold = 0 },
			wantError: true,
			errorMsg:  "threshold must be positive",
		},
		{
			name:      "too many neighbours",
			modify:    func(c *Config) { c.Recognition.Neighbors = 24 },
			wantError: true,
			errorMsg:  "neighbors must be between 1 and 16",
		},
		{
			name:      "target count zero",
			modify:    func(c *Config) { c.Enrollment.TargetCount = 0 },
			wantError: true,
			errorMsg:  "target_count must be positive",
		},
		{
			name:      "invalid confirmation policy",
			modify:    func(c *Config) { c.Verification.ConfirmationPolicy = "lenient" },
			wantError: true,
			errorMsg:  "invalid confirmation policy",
		},
		{
			name:   "contiguous confirmation policy",
			modify: func(c *Config) { c.Verification.ConfirmationPolicy = "contiguous" },
		},
		{
			name:      "multi character abort key",
			modify:    func(c *Config) { c.Preview.AbortKey = "esc" },
			wantError: true,
			errorMsg:  "abort_key must be a single character",
		},
		{
			name:      "invalid ledger backend",
			modify:    func(c *Config) { c.Ledger.Backend = "xlsx" },
			wantError: true,
			errorMsg:  "invalid ledger backend",
		},
		{
			name:      "no groups",
			modify:    func(c *Config) { c.Groups = nil },
			wantError: true,
			errorMsg:  "at least one group",
		},
		{
			name:      "invalid log level",
			modify:    func(c *Config) { c.Logging.Level = "invalid" },
			wantError: true,
			errorMsg:  "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got nil")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("error message doesn't contain '%s': %v", tt.errorMsg, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_EnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Storage.DataDir = filepath.Join(tmpDir, "data")
	cfg.Verification.SaveEvidence = true
	cfg.Verification.EvidenceDir = filepath.Join(tmpDir, "evidence")
	cfg.Ledger.Path = filepath.Join(tmpDir, "ledger", "attendance.csv")
	cfg.Logging.File = filepath.Join(tmpDir, "logs", "faceattend.log")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{
		cfg.SamplesDir(),
		cfg.Verification.EvidenceDir,
		filepath.Dir(cfg.Ledger.Path),
		filepath.Dir(cfg.Logging.File),
	} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("directory %s was not created", dir)
		}
	}
}

func TestConfig_Lookups(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.HasGroup("Control Engineering") {
		t.Error("expected Control Engineering to be a known group")
	}
	if cfg.HasGroup("Medicine") {
		t.Error("Medicine should not be a known group")
	}
	if !cfg.HasSubject("Physics") {
		t.Error("expected Physics to be a known subject")
	}
	if cfg.AbortKeyCode() != 'q' {
		t.Errorf("expected abort key q, got %d", cfg.AbortKeyCode())
	}
}

func BenchmarkConfig_Validate(b *testing.B) {
	cfg := DefaultConfig()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.ConfirmThreshold == nil || *cfg.ConfirmThreshold != 2 {
		t.Errorf("Expected ConfirmThreshold 2, got %v", cfg.ConfirmThreshold)
	}
	if cfg.OcclusionTimeoutFrames == nil || *cfg.OcclusionTimeoutFrames != 66 {
		t.Errorf("Expected OcclusionTimeoutFrames 66, got %v", cfg.OcclusionTimeoutFrames)
	}
	if cfg.FrameInterval == nil || *cfg.FrameInterval != "30ms" {
		t.Errorf("Expected FrameInterval '30ms', got %v", cfg.FrameInterval)
	}

	if cfg.GetTentativeDrop() != 3 {
		t.Errorf("GetTentativeDrop() = %d, want 3", cfg.GetTentativeDrop())
	}
	if cfg.GetGateDistanceMm() != 600 {
		t.Errorf("GetGateDistanceMm() = %f, want 600", cfg.GetGateDistanceMm())
	}
	if cfg.GetProcessNoisePos() != 50 || cfg.GetProcessNoiseVel() != 200 {
		t.Errorf("process noise = (%f, %f), want (50, 200)", cfg.GetProcessNoisePos(), cfg.GetProcessNoiseVel())
	}
	if cfg.GetMeasurementNoise() != 100 {
		t.Errorf("GetMeasurementNoise() = %f, want 100", cfg.GetMeasurementNoise())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "confirm_threshold": 4,
  "tentative_drop": 5,
  "occlusion_timeout_frames": 40,
  "gate_distance_mm": 750,
  "measurement_noise": 120,
  "frame_interval": "50ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetConfirmThreshold() != 4 {
		t.Errorf("Expected ConfirmThreshold 4, got %d", cfg.GetConfirmThreshold())
	}
	if cfg.GetTentativeDrop() != 5 {
		t.Errorf("Expected TentativeDrop 5, got %d", cfg.GetTentativeDrop())
	}
	if cfg.GetOcclusionTimeoutFrames() != 40 {
		t.Errorf("Expected OcclusionTimeoutFrames 40, got %d", cfg.GetOcclusionTimeoutFrames())
	}
	if cfg.GetGateDistanceMm() != 750 {
		t.Errorf("Expected GateDistanceMm 750, got %f", cfg.GetGateDistanceMm())
	}
	if cfg.GetMeasurementNoise() != 120 {
		t.Errorf("Expected MeasurementNoise 120, got %f", cfg.GetMeasurementNoise())
	}
	if cfg.GetFrameInterval() != 50*time.Millisecond {
		t.Errorf("Expected FrameInterval 50ms, got %v", cfg.GetFrameInterval())
	}
	// Unset field keeps its default.
	if cfg.GetProcessNoiseVel() != 200 {
		t.Errorf("Expected default ProcessNoiseVel 200, got %f", cfg.GetProcessNoiseVel())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "gate_distance_mm": "wide"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigRejectsOutOfRange(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "range.json")

	if err := os.WriteFile(configPath, []byte(`{"confirm_threshold": 0}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected validation error for confirm_threshold 0, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     DefaultTuningConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name:    "confirm threshold too high",
			cfg:     &TuningConfig{ConfirmThreshold: ptrInt(MaxConfirmThreshold + 1)},
			wantErr: true,
		},
		{
			name:    "tentative drop zero",
			cfg:     &TuningConfig{TentativeDrop: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "occlusion timeout above uint8 range",
			cfg:     &TuningConfig{OcclusionTimeoutFrames: ptrInt(256)},
			wantErr: true,
		},
		{
			name:    "gate distance too small",
			cfg:     &TuningConfig{GateDistanceMm: ptrFloat64(10)},
			wantErr: true,
		},
		{
			name:    "gate distance at upper bound",
			cfg:     &TuningConfig{GateDistanceMm: ptrFloat64(MaxGateDistanceMm)},
			wantErr: false,
		},
		{
			name:    "zero measurement noise",
			cfg:     &TuningConfig{MeasurementNoise: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "negative process noise",
			cfg:     &TuningConfig{ProcessNoiseVel: ptrFloat64(-1)},
			wantErr: true,
		},
		{
			name:    "unparseable frame interval",
			cfg:     &TuningConfig{FrameInterval: ptrString("soon")},
			wantErr: true,
		},
		{
			name:    "negative frame interval",
			cfg:     &TuningConfig{FrameInterval: ptrString("-30ms")},
			wantErr: true,
		},
		{
			name:    "queue depth zero",
			cfg:     &TuningConfig{FrameQueueDepth: ptrInt(0)},
			wantErr: true,
		},
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

func TestGetFrameInterval(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		want time.Duration
	}{
		{"nil uses default", &TuningConfig{}, 30 * time.Millisecond},
		{"empty uses default", &TuningConfig{FrameInterval: ptrString("")}, 30 * time.Millisecond},
		{"parse error uses default", &TuningConfig{FrameInterval: ptrString("bad")}, 30 * time.Millisecond},
		{"explicit value", &TuningConfig{FrameInterval: ptrString("100ms")}, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetFrameInterval()
			if got != tt.want {
				t.Errorf("GetFrameInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetGateDistanceMm() != 600 {
		t.Errorf("Expected 600, got %f", cfg.GetGateDistanceMm())
	}
	if cfg.GetOcclusionTimeoutFrames() != 66 {
		t.Errorf("Expected 66, got %d", cfg.GetOcclusionTimeoutFrames())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.example.json")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetConfirmThreshold() != 3 {
		t.Errorf("Expected 3, got %d", cfg.GetConfirmThreshold())
	}
	if cfg.GetGateDistanceMm() != 450 {
		t.Errorf("Expected 450, got %f", cfg.GetGateDistanceMm())
	}
	// Not in the example file.
	if cfg.GetTentativeDrop() != 3 {
		t.Errorf("Expected default 3, got %d", cfg.GetTentativeDrop())
	}
}

func TestExampleConfigFilesAgree(t *testing.T) {
	fromJSON, err := LoadTuningConfig("../../config/tuning.example.json")
	if err != nil {
		t.Fatalf("Failed to load JSON example: %v", err)
	}
	fromYAML, err := LoadTuningConfig("../../config/tuning.example.yaml")
	if err != nil {
		t.Fatalf("Failed to load YAML example: %v", err)
	}
	if diff := cmp.Diff(fromJSON, fromYAML); diff != "" {
		t.Errorf("JSON and YAML examples differ (-json +yaml):\n%s", diff)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetConfirmThreshold() != 2 {
		t.Errorf("Expected 2, got %d", cfg.GetConfirmThreshold())
	}
}

func TestLoadTuningConfigRejectsUnknownExtension(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.toml")
	if err == nil {
		t.Error("Expected error for .toml extension, got nil")
	}
}

func TestLoadTuningConfigYAML(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"tuning.yaml", "tuning.yml"} {
		configPath := filepath.Join(tmpDir, name)
		data := "confirm_threshold: 4\ngate_distance_mm: 750\nframe_interval: 50ms\n"
		if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}

		cfg, err := LoadTuningConfig(configPath)
		if err != nil {
			t.Fatalf("LoadTuningConfig(%s): %v", name, err)
		}
		if cfg.GetConfirmThreshold() != 4 {
			t.Errorf("%s: confirm threshold = %d, want 4", name, cfg.GetConfirmThreshold())
		}
		if cfg.GetGateDistanceMm() != 750 {
			t.Errorf("%s: gate = %f, want 750", name, cfg.GetGateDistanceMm())
		}
		if cfg.GetFrameInterval() != 50*time.Millisecond {
			t.Errorf("%s: frame interval = %v, want 50ms", name, cfg.GetFrameInterval())
		}
		if cfg.TentativeDrop != nil {
			t.Errorf("%s: tentative drop should stay unset", name)
		}
	}
}

func TestLoadTuningConfigYAMLInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("occlusion_timeout_frames: 999\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("Expected range error for occlusion_timeout_frames 999, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

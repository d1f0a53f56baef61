package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Accepted ranges for tracker tuning values loaded at start-up. The runtime
// setters on the tracker use narrower ranges of their own.
const (
	MinConfirmThreshold = 1
	MaxConfirmThreshold = 20
	MinTentativeDrop    = 1
	MaxTentativeDrop    = 20
	MinOcclusionFrames  = 1
	MaxOcclusionFrames  = 255
	MinGateDistanceMm   = 50
	MaxGateDistanceMm   = 3000
	MaxNoiseMm          = 5000
	MaxFrameQueueDepth  = 1024
)

// TuningConfig is the root of the tracker tuning file. Every field is a
// pointer so a partial file only overrides what it names; the Get* accessors
// supply the defaults for anything left unset.
type TuningConfig struct {
	// Lifecycle
	ConfirmThreshold       *int `json:"confirm_threshold,omitempty" yaml:"confirm_threshold,omitempty"`
	TentativeDrop          *int `json:"tentative_drop,omitempty" yaml:"tentative_drop,omitempty"`
	OcclusionTimeoutFrames *int `json:"occlusion_timeout_frames,omitempty" yaml:"occlusion_timeout_frames,omitempty"`

	// Association
	GateDistanceMm *float64 `json:"gate_distance_mm,omitempty" yaml:"gate_distance_mm,omitempty"`

	// Kalman noise (standard deviations)
	ProcessNoisePos  *float64 `json:"process_noise_pos,omitempty" yaml:"process_noise_pos,omitempty"` // mm
	ProcessNoiseVel  *float64 `json:"process_noise_vel,omitempty" yaml:"process_noise_vel,omitempty"` // mm/s
	MeasurementNoise *float64 `json:"measurement_noise,omitempty" yaml:"measurement_noise,omitempty"` // mm

	// Frame worker
	FrameQueueDepth *int    `json:"frame_queue_depth,omitempty" yaml:"frame_queue_depth,omitempty"`
	FrameInterval   *string `json:"frame_interval,omitempty" yaml:"frame_interval,omitempty"` // duration string like "30ms"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the built-in defaults. Useful for writing out a complete file.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		ConfirmThreshold:       ptrInt(e.GetConfirmThreshold()),
		TentativeDrop:          ptrInt(e.GetTentativeDrop()),
		OcclusionTimeoutFrames: ptrInt(e.GetOcclusionTimeoutFrames()),
		GateDistanceMm:         ptrFloat64(e.GetGateDistanceMm()),
		ProcessNoisePos:        ptrFloat64(e.GetProcessNoisePos()),
		ProcessNoiseVel:        ptrFloat64(e.GetProcessNoiseVel()),
		MeasurementNoise:       ptrFloat64(e.GetMeasurementNoise()),
		FrameQueueDepth:        ptrInt(e.GetFrameQueueDepth()),
		FrameInterval:          ptrString(e.GetFrameInterval().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file, chosen by
// extension (.json, .yaml or .yml). The file must be at most 1MB. Fields
// omitted from the file keep their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	unmarshal, err := decoderFor(cleanPath)
	if err != nil {
		return nil, err
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

	cfg := EmptyTuningConfig()
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Ext(cleanPath), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func decoderFor(path string) (func([]byte, any) error, error) {
	switch ext := filepath.Ext(path); ext {
	case ".json":
		return json.Unmarshal, nil
	case ".yaml", ".yml":
		return yaml.Unmarshal, nil
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root.
// Panics if the file cannot be loaded; intended for tests and binaries.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/tracking/debug/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks that every value that is set lies in its accepted range.
func (c *TuningConfig) Validate() error {
	if err := checkIntRange("confirm_threshold", c.ConfirmThreshold, MinConfirmThreshold, MaxConfirmThreshold); err != nil {
		return err
	}
	if err := checkIntRange("tentative_drop", c.TentativeDrop, MinTentativeDrop, MaxTentativeDrop); err != nil {
		return err
	}
	if err := checkIntRange("occlusion_timeout_frames", c.OcclusionTimeoutFrames, MinOcclusionFrames, MaxOcclusionFrames); err != nil {
		return err
	}
	if err := checkIntRange("frame_queue_depth", c.FrameQueueDepth, 1, MaxFrameQueueDepth); err != nil {
		return err
	}

	if c.GateDistanceMm != nil {
		if *c.GateDistanceMm < MinGateDistanceMm || *c.GateDistanceMm > MaxGateDistanceMm {
			return fmt.Errorf("gate_distance_mm must be between %d and %d, got %f",
				MinGateDistanceMm, MaxGateDistanceMm, *c.GateDistanceMm)
		}
	}

	// Noise terms must be strictly positive: a zero measurement noise makes
	// the innovation covariance collapse onto the state covariance.
	noises := []struct {
		name string
		v    *float64
	}{
		{"process_noise_pos", c.ProcessNoisePos},
		{"process_noise_vel", c.ProcessNoiseVel},
		{"measurement_noise", c.MeasurementNoise},
	}
	for _, n := range noises {
		if n.v == nil {
			continue
		}
		if *n.v <= 0 || *n.v > MaxNoiseMm {
			return fmt.Errorf("%s must be in (0, %d], got %f", n.name, MaxNoiseMm, *n.v)
		}
	}

	if c.FrameInterval != nil && *c.FrameInterval != "" {
		d, err := time.ParseDuration(*c.FrameInterval)
		if err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("frame_interval must be positive, got %s", d)
		}
	}

	return nil
}

func checkIntRange(name string, v *int, lo, hi int) error {
	if v == nil {
		return nil
	}
	if *v < lo || *v > hi {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, lo, hi, *v)
	}
	return nil
}

// GetConfirmThreshold returns the confirm_threshold value or the default.
func (c *TuningConfig) GetConfirmThreshold() int {
	if c.ConfirmThreshold == nil {
		return 2
	}
	return *c.ConfirmThreshold
}

// GetTentativeDrop returns the tentative_drop value or the default.
func (c *TuningConfig) GetTentativeDrop() int {
	if c.TentativeDrop == nil {
		return 3
	}
	return *c.TentativeDrop
}

// GetOcclusionTimeoutFrames returns the occlusion_timeout_frames value or the
// default (66 frames, about 2 s at 33 Hz).
func (c *TuningConfig) GetOcclusionTimeoutFrames() int {
	if c.OcclusionTimeoutFrames == nil {
		return 66
	}
	return *c.OcclusionTimeoutFrames
}

// GetGateDistanceMm returns the gate_distance_mm value or the default.
func (c *TuningConfig) GetGateDistanceMm() float64 {
	if c.GateDistanceMm == nil {
		return 600
	}
	return *c.GateDistanceMm
}

// GetProcessNoisePos returns the process_noise_pos value or the default.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	if c.ProcessNoisePos == nil {
		return 50
	}
	return *c.ProcessNoisePos
}

// GetProcessNoiseVel returns the process_noise_vel value or the default.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	if c.ProcessNoiseVel == nil {
		return 200
	}
	return *c.ProcessNoiseVel
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 100
	}
	return *c.MeasurementNoise
}

// GetFrameQueueDepth returns the frame_queue_depth value or the default.
func (c *TuningConfig) GetFrameQueueDepth() int {
	if c.FrameQueueDepth == nil {
		return 4
	}
	return *c.FrameQueueDepth
}

// GetFrameInterval parses and returns the FrameInterval as a time.Duration.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return 30 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil {
		return 30 * time.Millisecond // default on parse error
	}
	return d
}

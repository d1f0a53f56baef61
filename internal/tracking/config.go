package tracking

import (
	"fmt"
	"math"

	"github.com/r-mccarty/rs-1-sub003/internal/config"
)

// Ranges accepted by the runtime setters. Start-up configuration is bounded
// by the wider ranges in the config package.
const (
	MinRuntimeGateDistanceMm = 300
	MaxRuntimeGateDistanceMm = 1000
	MinRuntimeOcclusion      = 33 // ~1 s at 33 Hz
	MaxRuntimeOcclusion      = 99 // ~3 s at 33 Hz
)

// TrackerConfig holds the tuning parameters of the tracker.
type TrackerConfig struct {
	ConfirmThreshold       int     // Consecutive hits to promote a tentative track
	TentativeDrop          int     // Consecutive misses before a tentative track retires
	OcclusionTimeoutFrames int     // Consecutive misses before an occluded track retires
	GateDistanceMm         float32 // Association gate (Euclidean, mm)
	ProcessNoisePos        float32 // Position process noise σ (mm)
	ProcessNoiseVel        float32 // Velocity process noise σ (mm/s)
	MeasurementNoise       float32 // Measurement noise σ (mm)
}

// DefaultTrackerConfig returns the built-in defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfigFromTuning(config.EmptyTuningConfig())
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
// Unset fields take their defaults.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		ConfirmThreshold:       cfg.GetConfirmThreshold(),
		TentativeDrop:          cfg.GetTentativeDrop(),
		OcclusionTimeoutFrames: cfg.GetOcclusionTimeoutFrames(),
		GateDistanceMm:         float32(cfg.GetGateDistanceMm()),
		ProcessNoisePos:        float32(cfg.GetProcessNoisePos()),
		ProcessNoiseVel:        float32(cfg.GetProcessNoiseVel()),
		MeasurementNoise:       float32(cfg.GetMeasurementNoise()),
	}
}

// Validate checks every field against its accepted range. Errors wrap
// ErrInvalidArgument.
func (c TrackerConfig) Validate() error {
	if c.ConfirmThreshold < config.MinConfirmThreshold || c.ConfirmThreshold > config.MaxConfirmThreshold {
		return fmt.Errorf("%w: confirm threshold %d outside [%d, %d]", ErrInvalidArgument,
			c.ConfirmThreshold, config.MinConfirmThreshold, config.MaxConfirmThreshold)
	}
	if c.TentativeDrop < config.MinTentativeDrop || c.TentativeDrop > config.MaxTentativeDrop {
		return fmt.Errorf("%w: tentative drop %d outside [%d, %d]", ErrInvalidArgument,
			c.TentativeDrop, config.MinTentativeDrop, config.MaxTentativeDrop)
	}
	if c.OcclusionTimeoutFrames < config.MinOcclusionFrames || c.OcclusionTimeoutFrames > config.MaxOcclusionFrames {
		return fmt.Errorf("%w: occlusion timeout %d outside [%d, %d]", ErrInvalidArgument,
			c.OcclusionTimeoutFrames, config.MinOcclusionFrames, config.MaxOcclusionFrames)
	}
	if !inRange(c.GateDistanceMm, config.MinGateDistanceMm, config.MaxGateDistanceMm) {
		return fmt.Errorf("%w: gate distance %.1f mm outside [%d, %d]", ErrInvalidArgument,
			c.GateDistanceMm, config.MinGateDistanceMm, config.MaxGateDistanceMm)
	}
	for _, n := range [...]struct {
		name string
		v    float32
	}{
		{"process noise (position)", c.ProcessNoisePos},
		{"process noise (velocity)", c.ProcessNoiseVel},
		{"measurement noise", c.MeasurementNoise},
	} {
		if !(n.v > 0 && n.v <= config.MaxNoiseMm) {
			return fmt.Errorf("%w: %s %.1f outside (0, %d]", ErrInvalidArgument, n.name, n.v, config.MaxNoiseMm)
		}
	}
	return nil
}

func (c TrackerConfig) limits() lifecycleLimits {
	return lifecycleLimits{
		confirmThreshold: c.ConfirmThreshold,
		tentativeDrop:    c.TentativeDrop,
		occlusionTimeout: c.OcclusionTimeoutFrames,
	}
}

func (c TrackerConfig) noise() noiseModel {
	return noiseModel{
		qPos: c.ProcessNoisePos * c.ProcessNoisePos,
		qVel: c.ProcessNoiseVel * c.ProcessNoiseVel,
		r:    c.MeasurementNoise * c.MeasurementNoise,
	}
}

// inRange is false for NaN.
func inRange(v float32, lo, hi float64) bool {
	f := float64(v)
	return !math.IsNaN(f) && f >= lo && f <= hi
}

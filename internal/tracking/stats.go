package tracking

import "time"

// Stats are the lifetime counters of a Tracker since creation or the last
// ResetStats.
type Stats struct {
	FramesProcessed uint64 `json:"frames_processed"`
	Confirmations   uint64 `json:"confirmations"`
	Retirements     uint64 `json:"retirements"`
	IDSwitches      uint64 `json:"id_switches"`
	FilterResets    uint64 `json:"filter_resets"`
	DroppedSpawns   uint64 `json:"dropped_spawns"` // detections lost to a full pool

	LastProcessingTime time.Duration `json:"last_processing_ns"`
	PeakProcessingTime time.Duration `json:"peak_processing_ns"`
}

// TrackerState is a diagnostic snapshot of the whole tracker.
type TrackerState struct {
	Tracks      [MaxTracks]Track
	ActiveCount int
	NextTrackID TrackID
	FrameCount  uint64

	Confirmations uint64
	Retirements   uint64
	IDSwitches    uint64
	FilterResets  uint64
}

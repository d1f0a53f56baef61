// Package debug provides instrumentation for the radar tracker.
// The Collector captures algorithm internals (association candidates, Kalman
// predictions and innovations, filter resets) for replay inspection and
// tuning.
package debug

// Pre-allocation capacities for one frame, from the LD2450 limits:
//   - 3 track slots × up to 8 detections = 24 association candidates
//   - one prediction, innovation and possible reset per track slot
const (
	associationCapacity = 24
	perTrackCapacity    = 3
)

// Collector accumulates debug artifacts during a single frame's processing.
//
// The collector is stateful: BeginFrame, then Record*() during processing,
// then Emit at frame completion. Buffers are allocated once and reused, so
// an emitted frame is only valid until the next BeginFrame.
type Collector struct {
	enabled bool
	active  bool
	frame   Frame
}

// Frame contains all debug artifacts for a single frame.
type Frame struct {
	FrameID uint64 `json:"frame_id"`

	// Association stage: every track-detection pair that was evaluated
	Associations []AssociationRecord `json:"associations"`

	// Kalman predict: state after the predict step
	Predictions []StatePrediction `json:"predictions"`

	// Kalman update: measurement minus prediction
	Innovations []KalmanInnovation `json:"innovations"`

	// Divergence: filters re-initialised from the measurement
	FilterResets []FilterReset `json:"filter_resets,omitempty"`
}

// AssociationRecord captures a single track-detection pairing.
type AssociationRecord struct {
	DetectionIndex int     `json:"detection_index"`
	TrackID        uint8   `json:"track_id"`
	DistanceMm     float32 `json:"distance_mm"`
	Accepted       bool    `json:"accepted"`
}

// StatePrediction is a track's state after the predict step.
type StatePrediction struct {
	TrackID uint8   `json:"track_id"`
	X       float32 `json:"x"`
	Y       float32 `json:"y"`
	VX      float32 `json:"vx"`
	VY      float32 `json:"vy"`
}

// KalmanInnovation is a measurement residual in the update step.
type KalmanInnovation struct {
	TrackID     uint8   `json:"track_id"`
	PredictedX  float32 `json:"predicted_x"`
	PredictedY  float32 `json:"predicted_y"`
	MeasuredX   float32 `json:"measured_x"`
	MeasuredY   float32 `json:"measured_y"`
	ResidualMag float32 `json:"residual_mm"`
}

// FilterReset records a divergence recovery.
type FilterReset struct {
	TrackID   uint8   `json:"track_id"`
	MeasuredX float32 `json:"measured_x"`
	MeasuredY float32 `json:"measured_y"`
}

// NewCollector creates a collector that's initially disabled.
func NewCollector() *Collector {
	return &Collector{
		frame: Frame{
			Associations: make([]AssociationRecord, 0, associationCapacity),
			Predictions:  make([]StatePrediction, 0, perTrackCapacity),
			Innovations:  make([]KalmanInnovation, 0, perTrackCapacity),
			FilterResets: make([]FilterReset, 0, perTrackCapacity),
		},
	}
}

// SetEnabled controls whether the collector records artifacts.
// When disabled, all Record*() calls are no-ops.
func (c *Collector) SetEnabled(enabled bool) {
	c.enabled = enabled
	if !enabled {
		c.active = false
	}
}

// IsEnabled returns true if the collector is actively recording.
func (c *Collector) IsEnabled() bool {
	return c.enabled
}

// BeginFrame starts collection for a new frame, discarding anything not
// emitted.
func (c *Collector) BeginFrame(frameID uint64) {
	if !c.enabled {
		return
	}
	c.frame.FrameID = frameID
	c.frame.Associations = c.frame.Associations[:0]
	c.frame.Predictions = c.frame.Predictions[:0]
	c.frame.Innovations = c.frame.Innovations[:0]
	c.frame.FilterResets = c.frame.FilterResets[:0]
	c.active = true
}

func (c *Collector) recording() bool {
	return c.enabled && c.active
}

// RecordAssociation captures a track-detection pair evaluation.
func (c *Collector) RecordAssociation(detIdx int, trackID uint8, dist float32, accepted bool) {
	if !c.recording() {
		return
	}
	c.frame.Associations = append(c.frame.Associations, AssociationRecord{
		DetectionIndex: detIdx,
		TrackID:        trackID,
		DistanceMm:     dist,
		Accepted:       accepted,
	})
}

// RecordPrediction captures a track's predicted state.
func (c *Collector) RecordPrediction(trackID uint8, x, y, vx, vy float32) {
	if !c.recording() {
		return
	}
	c.frame.Predictions = append(c.frame.Predictions, StatePrediction{
		TrackID: trackID,
		X:       x,
		Y:       y,
		VX:      vx,
		VY:      vy,
	})
}

// RecordInnovation captures a Kalman innovation.
func (c *Collector) RecordInnovation(trackID uint8, predX, predY, measX, measY, residualMag float32) {
	if !c.recording() {
		return
	}
	c.frame.Innovations = append(c.frame.Innovations, KalmanInnovation{
		TrackID:     trackID,
		PredictedX:  predX,
		PredictedY:  predY,
		MeasuredX:   measX,
		MeasuredY:   measY,
		ResidualMag: residualMag,
	})
}

// RecordFilterReset captures a filter re-initialisation.
func (c *Collector) RecordFilterReset(trackID uint8, measX, measY float32) {
	if !c.recording() {
		return
	}
	c.frame.FilterResets = append(c.frame.FilterResets, FilterReset{
		TrackID:   trackID,
		MeasuredX: measX,
		MeasuredY: measY,
	})
}

// Emit returns the accumulated frame and ends collection for it.
// Returns nil if collection is disabled or no frame was begun.
// The returned frame shares the collector's buffers.
func (c *Collector) Emit() *Frame {
	if !c.recording() {
		return nil
	}
	c.active = false
	return &c.frame
}

// Reset drops any pending artifacts without emitting them.
func (c *Collector) Reset() {
	c.active = false
}

package tracking

import "encoding/json"

// Fixed limits of the tracker.
const (
	// MaxTracks is the number of track slots (LD2450 hardware limit).
	MaxTracks = 3

	// MaxDetections is the largest detection count accepted in one frame.
	// Frames with more detections are rejected with ErrInvalidArgument.
	MaxDetections = 8

	// DTSec is the fixed frame interval of the motion model (seconds).
	DTSec float32 = 0.030

	// MinCovariance and MaxCovariance bound the covariance diagonal.
	// Leaving the range is treated as filter divergence.
	MinCovariance float32 = 1e-6
	MaxCovariance float32 = 1e6
)

// TrackID identifies a live track. NoTrack (0) means "no track".
type TrackID uint8

// NoTrack is the invalid identifier.
const NoTrack TrackID = 0

// Detection is one raw radar target position for the current frame.
type Detection struct {
	XMm int16 `json:"x_mm"`
	YMm int16 `json:"y_mm"`
}

// DetectionFrame is the tracker input for one 30 ms interval.
type DetectionFrame struct {
	Detections  []Detection `json:"detections"`
	TimestampMs uint32      `json:"timestamp_ms"`
	Seq         uint32      `json:"seq"` // ingest sequence number, informational
}

// TrackOutput is the externally reported view of a track.
type TrackOutput struct {
	ID         TrackID    `json:"track_id"`
	XMm        int16      `json:"x_mm"`
	YMm        int16      `json:"y_mm"`
	VXMmS      int16      `json:"vx_mm_s"`
	VYMmS      int16      `json:"vy_mm_s"`
	Confidence uint8      `json:"confidence"`
	State      TrackState `json:"state"`
}

// TrackFrame is the tracker output for one processed frame. Only confirmed
// and occluded tracks are reported; Tracks[:Count] holds them in slot order.
type TrackFrame struct {
	Tracks      [MaxTracks]TrackOutput
	Count       int
	TimestampMs uint32
	Seq         uint64
}

// Reported returns the populated part of Tracks.
func (f *TrackFrame) Reported() []TrackOutput {
	return f.Tracks[:f.Count]
}

// MarshalJSON encodes the frame with only its reported tracks.
func (f TrackFrame) MarshalJSON() ([]byte, error) {
	n := min(max(f.Count, 0), MaxTracks)
	return json.Marshal(struct {
		Seq         uint64        `json:"seq"`
		TimestampMs uint32        `json:"timestamp_ms"`
		Tracks      []TrackOutput `json:"tracks"`
	}{f.Seq, f.TimestampMs, f.Tracks[:n]})
}

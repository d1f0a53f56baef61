// Package testutil provides shared detection fixtures for tests of the
// packages built on the tracker.
package testutil

import (
	"encoding/json"
	"io"

	"github.com/r-mccarty/rs-1-sub003/internal/tracking"
)

// FrameIntervalMs is the timestamp step between generated frames.
const FrameIntervalMs = 30

// Scenario accumulates detection frames at the radar's frame cadence.
// Timestamps start at 0 and sequence numbers at 1.
type Scenario struct {
	frames []tracking.DetectionFrame
}

// NewScenario returns an empty scenario.
func NewScenario() *Scenario {
	return &Scenario{}
}

// Frame appends one frame holding dets.
func (s *Scenario) Frame(dets ...tracking.Detection) *Scenario {
	n := len(s.frames)
	s.frames = append(s.frames, tracking.DetectionFrame{
		Detections:  append(make([]tracking.Detection, 0, len(dets)), dets...),
		TimestampMs: uint32(n * FrameIntervalMs),
		Seq:         uint32(n + 1),
	})
	return s
}

// Repeat appends n identical frames holding dets.
func (s *Scenario) Repeat(n int, dets ...tracking.Detection) *Scenario {
	for i := 0; i < n; i++ {
		s.Frame(dets...)
	}
	return s
}

// Empty appends n frames with no detections.
func (s *Scenario) Empty(n int) *Scenario {
	return s.Repeat(n)
}

// Walk appends n frames of a single target starting at from and moving by
// (dx, dy) mm per frame.
func (s *Scenario) Walk(n int, from tracking.Detection, dx, dy int16) *Scenario {
	d := from
	for i := 0; i < n; i++ {
		s.Frame(d)
		d.XMm += dx
		d.YMm += dy
	}
	return s
}

// Frames returns the frames built so far.
func (s *Scenario) Frames() []tracking.DetectionFrame {
	return s.frames
}

// WriteLog writes the scenario as a JSON-lines detection log.
func (s *Scenario) WriteLog(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, f := range s.frames {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return nil
}

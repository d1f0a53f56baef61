package tracking

import (
	"fmt"
	"math"
	"sync"

	"github.com/r-mccarty/rs-1-sub003/internal/timeutil"
)

// DebugCollector receives algorithm internals for offline inspection.
// It uses primitive types so the debug package does not import tracking.
type DebugCollector interface {
	IsEnabled() bool
	BeginFrame(frameID uint64)
	RecordPrediction(trackID uint8, x, y, vx, vy float32)
	RecordAssociation(detIdx int, trackID uint8, dist float32, accepted bool)
	RecordInnovation(trackID uint8, predX, predY, measX, measY, residualMag float32)
	RecordFilterReset(trackID uint8, measX, measY float32)
}

// Tracker is the multi-target tracking pipeline. It owns a fixed pool of
// MaxTracks slots and processes one detection frame at a time.
//
// All methods are safe for concurrent use, but frames must come from a
// single producer in order (see pipeline.FrameWorker).
type Tracker struct {
	config TrackerConfig
	noise  noiseModel
	limits lifecycleLimits

	tracks      [MaxTracks]Track
	activeCount int
	nextID      TrackID
	frameCount  uint64
	retired     retiredRing

	assoc  Associator
	events eventBuffer
	stats  Stats

	clock    timeutil.Clock
	observer Observer
	debug    DebugCollector

	mu sync.RWMutex
}

// Option configures a Tracker at construction.
type Option func(*Tracker)

// WithClock sets the clock used to measure per-frame processing time.
func WithClock(c timeutil.Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

// WithObserver registers an observer for lifecycle notifications.
func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		t.observer = o
	}
}

// WithDebugCollector attaches a debug collector.
func WithDebugCollector(c DebugCollector) Option {
	return func(t *Tracker) {
		t.debug = c
	}
}

// NewTracker creates a tracker with the given configuration. It returns an
// error wrapping ErrInvalidArgument if the configuration is out of range.
func NewTracker(cfg TrackerConfig, opts ...Option) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{
		config: cfg,
		noise:  cfg.noise(),
		limits: cfg.limits(),
		nextID: 1,
		clock:  timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.clock == nil {
		t.clock = timeutil.RealClock{}
	}
	return t, nil
}

// Reset clears all tracks, statistics and the frame counter. Identifier
// allocation restarts at 1.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = [MaxTracks]Track{}
	t.activeCount = 0
	t.nextID = 1
	t.frameCount = 0
	t.retired.clear()
	t.stats = Stats{}
	diagf("tracker reset")
}

// ProcessFrame runs one frame through predict, associate, update, spawn,
// cleanup and emit, and returns the confirmed and occluded tracks.
//
// A frame with more than MaxDetections detections is rejected with
// ErrInvalidArgument and the tracker is left untouched. Numerical problems
// are recovered internally and never returned.
func (t *Tracker) ProcessFrame(frame DetectionFrame) (TrackFrame, error) {
	if n := len(frame.Detections); n > MaxDetections {
		opsf("rejecting frame seq=%d: %d detections exceeds %d", frame.Seq, n, MaxDetections)
		return TrackFrame{}, fmt.Errorf("%w: %d detections exceeds maximum %d", ErrInvalidArgument, n, MaxDetections)
	}

	t.mu.Lock()
	start := t.clock.Now()
	t.frameCount++
	t.events.n = 0
	if t.debugOn() {
		t.debug.BeginFrame(t.frameCount)
	}

	// 1. Predict
	var preds [MaxTracks]Prediction
	var slots [MaxTracks]int
	n := t.predict(&preds, &slots)

	// 2. Associate
	asg := t.assoc.Associate(preds[:n], frame.Detections, t.config.GateDistanceMm)
	if t.debugOn() {
		t.recordAssociations(preds[:n], &asg, len(frame.Detections))
	}

	// 3. Update
	t.update(&asg, &slots, n, frame)

	// 4. Spawn
	t.spawn(&asg, frame)

	// 5. Cleanup
	t.recount()

	// 6. Emit
	out := t.emit(frame.TimestampMs)

	elapsed := t.clock.Since(start)
	t.stats.FramesProcessed++
	t.stats.LastProcessingTime = elapsed
	if elapsed > t.stats.PeakProcessingTime {
		t.stats.PeakProcessingTime = elapsed
	}
	if traceEnabled() {
		tracef("frame %d: dets=%d matched=%d active=%d reported=%d took=%v",
			t.frameCount, len(frame.Detections), asg.Matches, t.activeCount, out.Count, elapsed)
	}

	events := t.events
	observer := t.observer
	t.mu.Unlock()

	if observer != nil {
		events.dispatch(observer)
	}
	return out, nil
}

func (t *Tracker) debugOn() bool {
	return t.debug != nil && t.debug.IsEnabled()
}

// predict advances every live track and collects its predicted position.
// slots maps prediction index to track slot.
func (t *Tracker) predict(preds *[MaxTracks]Prediction, slots *[MaxTracks]int) int {
	n := 0
	for i := range t.tracks {
		tr := &t.tracks[i]
		tr.MatchedDetection = Unmatched
		if !tr.State.Active() {
			continue
		}
		tr.Filter.predict(t.noise)
		if !tr.Filter.finite() {
			// Nothing to re-initialise from without a measurement.
			t.dropDiverged(tr)
			continue
		}
		tr.project()
		preds[n] = Prediction{ID: tr.ID, X: tr.Filter.X[0], Y: tr.Filter.X[1]}
		slots[n] = i
		n++
		if t.debugOn() {
			t.debug.RecordPrediction(uint8(tr.ID), tr.Filter.X[0], tr.Filter.X[1], tr.Filter.X[2], tr.Filter.X[3])
		}
	}
	return n
}

// dropDiverged retires a track whose predicted state is no longer finite.
func (t *Tracker) dropDiverged(tr *Track) {
	from := tr.State
	tr.State = StateRetired
	t.stats.FilterResets++
	t.events.push(trackEvent{kind: evFilterReset, id: tr.ID})
	if opsEnabled() {
		opsf("track %d: non-finite prediction, dropping track", tr.ID)
	}
	t.applyLifecycle(tr, from, eventRetired)
}

func (t *Tracker) recordAssociations(preds []Prediction, asg *Assignment, nd int) {
	for i := range preds {
		for j := 0; j < nd; j++ {
			d, ok := t.assoc.Distance(i, j)
			if !ok {
				continue
			}
			t.debug.RecordAssociation(j, uint8(preds[i].ID), d, asg.TrackToDet[i] == j)
		}
	}
}

// update applies the association result: matched tracks take a Kalman
// update and a hit, unmatched tracks take a miss.
func (t *Tracker) update(asg *Assignment, slots *[MaxTracks]int, n int, frame DetectionFrame) {
	for p := 0; p < n; p++ {
		tr := &t.tracks[slots[p]]
		from := tr.State

		j := asg.TrackToDet[p]
		if j == Unmatched {
			t.applyLifecycle(tr, from, tr.miss(t.limits))
			continue
		}

		d := frame.Detections[j]
		zx, zy := float32(d.XMm), float32(d.YMm)
		tr.MatchedDetection = j
		if t.debugOn() {
			px, py := tr.Filter.X[0], tr.Filter.X[1]
			dx, dy := float64(zx-px), float64(zy-py)
			t.debug.RecordInnovation(uint8(tr.ID), px, py, zx, zy, float32(math.Sqrt(dx*dx+dy*dy)))
		}

		if tr.Filter.update(zx, zy, t.noise) {
			t.stats.FilterResets++
			t.events.push(trackEvent{kind: evFilterReset, id: tr.ID})
			if opsEnabled() {
				opsf("track %d: filter diverged, reset at (%d, %d)", tr.ID, d.XMm, d.YMm)
			}
			if t.debugOn() {
				t.debug.RecordFilterReset(uint8(tr.ID), zx, zy)
			}
		}
		tr.project()
		t.applyLifecycle(tr, from, tr.hit(d, frame.TimestampMs, t.limits))
	}
}

// applyLifecycle records the side effects of a lifecycle transition.
func (t *Tracker) applyLifecycle(tr *Track, from TrackState, ev lifecycleEvent) {
	switch ev {
	case eventConfirmed:
		t.stats.Confirmations++
		t.events.push(trackEvent{kind: evConfirmed, id: tr.ID})
		if diagEnabled() {
			diagf("track %d confirmed at (%d, %d)", tr.ID, tr.XMm, tr.YMm)
		}
	case eventRecovered:
		if diagEnabled() {
			diagf("track %d recovered from occlusion", tr.ID)
		}
	case eventOccluded:
		if diagEnabled() {
			diagf("track %d occluded", tr.ID)
		}
	case eventRetired:
		t.stats.Retirements++
		t.events.push(trackEvent{kind: evRetired, id: tr.ID, from: from})
		if from == StateConfirmed || from == StateOccluded {
			t.retired.push(tr.ID, tr.lastMatchX, tr.lastMatchY, t.frameCount)
		}
		if diagEnabled() {
			diagf("track %d retired from %s after %d misses", tr.ID, from, tr.Misses)
		}
	}
}

// spawn creates tentative tracks for unmatched detections in detection
// order, each in the lowest free slot. Detections that find no free slot
// are dropped.
func (t *Tracker) spawn(asg *Assignment, frame DetectionFrame) {
	for j, d := range frame.Detections {
		if asg.DetToTrack[j] != Unmatched {
			continue
		}
		slot := t.freeSlot()
		if slot < 0 {
			t.stats.DroppedSpawns++
			if diagEnabled() {
				diagf("no free slot, dropping detection %d at (%d, %d)", j, d.XMm, d.YMm)
			}
			continue
		}

		id := t.allocateID()
		tr := &t.tracks[slot]
		tr.spawn(id, d, frame.TimestampMs)
		tr.MatchedDetection = j
		if diagEnabled() {
			diagf("spawned tentative track %d at (%d, %d)", id, d.XMm, d.YMm)
		}

		if prev, ok := t.retired.claim(float32(d.XMm), float32(d.YMm),
			t.config.GateDistanceMm, t.frameCount, t.config.OcclusionTimeoutFrames); ok {
			t.stats.IDSwitches++
			t.events.push(trackEvent{kind: evIdentitySwitch, id: id, prev: prev})
			if diagEnabled() {
				diagf("identity switch: track %d reappeared as %d", prev, id)
			}
		}

		// The spawning detection is the first hit, which confirms the
		// track when the threshold is one.
		next, ev := tr.State.onHit(tr.Hits, t.limits)
		tr.State = next
		t.applyLifecycle(tr, StateTentative, ev)
	}
}

func (t *Tracker) freeSlot() int {
	for i := range t.tracks {
		if t.tracks[i].State == StateRetired {
			return i
		}
	}
	return -1
}

func (t *Tracker) recount() {
	n := 0
	for i := range t.tracks {
		if t.tracks[i].State.Active() {
			n++
		}
	}
	t.activeCount = n
}

// emit builds the output frame from confirmed and occluded tracks in slot
// order.
func (t *Tracker) emit(timestampMs uint32) TrackFrame {
	out := TrackFrame{
		TimestampMs: timestampMs,
		Seq:         t.frameCount,
	}
	for i := range t.tracks {
		tr := &t.tracks[i]
		if !tr.State.Reported() {
			continue
		}
		out.Tracks[out.Count] = tr.Output()
		out.Count++
	}
	return out
}

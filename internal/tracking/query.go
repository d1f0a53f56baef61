package tracking

import "fmt"

// GetTrack returns the current view of a live track, including tentative
// ones. It returns ErrNotFound for retired and never-spawned identifiers
// and ErrInvalidArgument for NoTrack.
func (t *Tracker) GetTrack(id TrackID) (TrackOutput, error) {
	if id == NoTrack {
		return TrackOutput{}, fmt.Errorf("%w: track id 0", ErrInvalidArgument)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.tracks {
		tr := &t.tracks[i]
		if tr.State.Active() && tr.ID == id {
			return tr.Output(), nil
		}
	}
	return TrackOutput{}, fmt.Errorf("track %d: %w", id, ErrNotFound)
}

// ActiveCount returns the number of non-retired tracks.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeCount
}

// ConfirmedCount returns the number of confirmed and occluded tracks.
func (t *Tracker) ConfirmedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for i := range t.tracks {
		if t.tracks[i].State.Reported() {
			n++
		}
	}
	return n
}

// State returns a copy of the full tracker state for diagnostics.
func (t *Tracker) State() TrackerState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TrackerState{
		Tracks:        t.tracks,
		ActiveCount:   t.activeCount,
		NextTrackID:   t.nextID,
		FrameCount:    t.frameCount,
		Confirmations: t.stats.Confirmations,
		Retirements:   t.stats.Retirements,
		IDSwitches:    t.stats.IDSwitches,
		FilterResets:  t.stats.FilterResets,
	}
}

// Stats returns a copy of the statistics.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// ResetStats clears the statistics. Tracks and the frame counter are kept.
func (t *Tracker) ResetStats() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = Stats{}
}

// Config returns the active configuration.
func (t *Tracker) Config() TrackerConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}

// SetGateDistance changes the association gate. Values outside
// [MinRuntimeGateDistanceMm, MaxRuntimeGateDistanceMm] are rejected with
// ErrInvalidArgument.
func (t *Tracker) SetGateDistance(mm float32) error {
	if !inRange(mm, MinRuntimeGateDistanceMm, MaxRuntimeGateDistanceMm) {
		return fmt.Errorf("%w: gate distance %.1f mm outside [%d, %d]", ErrInvalidArgument,
			mm, MinRuntimeGateDistanceMm, MaxRuntimeGateDistanceMm)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config.GateDistanceMm = mm
	diagf("gate distance set to %.0f mm", mm)
	return nil
}

// SetOcclusionTimeout changes the occlusion timeout. Values outside
// [MinRuntimeOcclusion, MaxRuntimeOcclusion] frames are rejected with
// ErrInvalidArgument.
func (t *Tracker) SetOcclusionTimeout(frames int) error {
	if frames < MinRuntimeOcclusion || frames > MaxRuntimeOcclusion {
		return fmt.Errorf("%w: occlusion timeout %d outside [%d, %d]", ErrInvalidArgument,
			frames, MinRuntimeOcclusion, MaxRuntimeOcclusion)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config.OcclusionTimeoutFrames = frames
	t.limits = t.config.limits()
	diagf("occlusion timeout set to %d frames", frames)
	return nil
}

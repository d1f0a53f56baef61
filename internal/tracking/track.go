package tracking

// Track is one slot of the fixed track pool. A slot in StateRetired is
// free; its other fields are stale and must not be reported.
type Track struct {
	ID    TrackID
	State TrackState

	Filter KalmanFilter

	// Integer projections of Filter.X, refreshed after every predict and
	// update.
	XMm   int16
	YMm   int16
	VXMmS int16
	VYMmS int16

	Hits   int // Consecutive matched frames
	Misses int // Consecutive unmatched frames

	FirstSeenMs uint32
	LastSeenMs  uint32

	// MatchedDetection is the detection index matched this frame, or
	// Unmatched.
	MatchedDetection int

	// Position at the last match, remembered on retirement for the
	// identity-switch statistic.
	lastMatchX float32
	lastMatchY float32
}

// Confidence terms. The reported value only depends on the current run of
// hits or misses and the time since spawn, never on older history.
const (
	baseConfidence     = 50
	hitConfidence      = 5 // per consecutive hit
	maxHitConfidence   = 30
	missConfidence     = 8 // per consecutive miss
	maxMissConfidence  = 40
	ageConfidence      = 2 // per whole second between first and last match
	maxAgeConfidence   = 20
	maxConfidenceValue = 100
)

// spawn initialises the slot as a tentative track at the detection. The
// spawning detection counts as the first hit.
func (tr *Track) spawn(id TrackID, d Detection, timestampMs uint32) {
	*tr = Track{
		ID:               id,
		State:            StateTentative,
		Hits:             1,
		FirstSeenMs:      timestampMs,
		LastSeenMs:       timestampMs,
		MatchedDetection: Unmatched,
		lastMatchX:       float32(d.XMm),
		lastMatchY:       float32(d.YMm),
	}
	tr.Filter.init(float32(d.XMm), float32(d.YMm))
	tr.project()
}

// hit records a matched frame and returns the lifecycle event it caused.
func (tr *Track) hit(d Detection, timestampMs uint32, lim lifecycleLimits) lifecycleEvent {
	tr.Hits++
	tr.Misses = 0
	tr.LastSeenMs = timestampMs
	tr.lastMatchX = float32(d.XMm)
	tr.lastMatchY = float32(d.YMm)

	next, ev := tr.State.onHit(tr.Hits, lim)
	tr.State = next
	return ev
}

// miss records an unmatched frame and returns the lifecycle event it caused.
func (tr *Track) miss(lim lifecycleLimits) lifecycleEvent {
	tr.Misses++
	tr.Hits = 0

	next, ev := tr.State.onMiss(tr.Misses, lim)
	tr.State = next
	return ev
}

// project refreshes the integer projections from the filter state.
func (tr *Track) project() {
	tr.XMm = roundSaturate16(tr.Filter.X[0])
	tr.YMm = roundSaturate16(tr.Filter.X[1])
	tr.VXMmS = roundSaturate16(tr.Filter.X[2])
	tr.VYMmS = roundSaturate16(tr.Filter.X[3])
}

// Confidence returns the reported confidence in 0..100. It rises with
// consecutive hits and track age and falls with consecutive misses.
func (tr *Track) Confidence() uint8 {
	conf := baseConfidence
	conf += min(maxHitConfidence, tr.Hits*hitConfidence)
	conf -= min(maxMissConfidence, tr.Misses*missConfidence)
	ageSec := (tr.LastSeenMs - tr.FirstSeenMs) / 1000
	conf += int(min(maxAgeConfidence, ageSec*ageConfidence))
	return uint8(max(0, min(maxConfidenceValue, conf)))
}

// Output returns the externally reported view of the track.
func (tr *Track) Output() TrackOutput {
	return TrackOutput{
		ID:         tr.ID,
		XMm:        tr.XMm,
		YMm:        tr.YMm,
		VXMmS:      tr.VXMmS,
		VYMmS:      tr.VYMmS,
		Confidence: tr.Confidence(),
		State:      tr.State,
	}
}

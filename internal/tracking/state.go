package tracking

import "fmt"

// TrackState is the lifecycle state of a track slot.
//
// The zero value is StateRetired, so an unused slot is retired. Transitions
// only happen through onHit and onMiss.
type TrackState uint8

const (
	StateRetired   TrackState = iota // Slot free
	StateTentative                   // New track, awaiting confirmation
	StateConfirmed                   // Confirmed, actively reporting
	StateOccluded                    // Confirmed, temporarily missing
)

var stateNames = [...]string{
	StateRetired:   "retired",
	StateTentative: "tentative",
	StateConfirmed: "confirmed",
	StateOccluded:  "occluded",
}

func (s TrackState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("TrackState(%d)", uint8(s))
}

// MarshalText encodes the state as its lowercase name.
func (s TrackState) MarshalText() ([]byte, error) {
	if int(s) >= len(stateNames) {
		return nil, fmt.Errorf("unknown track state %d", uint8(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText decodes a lowercase state name.
func (s *TrackState) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = TrackState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown track state %q", text)
}

// Active reports whether the slot holds a live track.
func (s TrackState) Active() bool {
	return s == StateTentative || s == StateConfirmed || s == StateOccluded
}

// Reported reports whether tracks in this state appear in output frames.
func (s TrackState) Reported() bool {
	return s == StateConfirmed || s == StateOccluded
}

// lifecycleEvent is the externally interesting side effect of a transition.
type lifecycleEvent uint8

const (
	eventNone lifecycleEvent = iota
	eventConfirmed
	eventRecovered
	eventOccluded
	eventRetired
)

// lifecycleLimits are the thresholds the state machine runs against.
type lifecycleLimits struct {
	confirmThreshold int
	tentativeDrop    int
	occlusionTimeout int
}

// onHit returns the state that follows a matched frame. hits counts
// consecutive matches including this one.
func (s TrackState) onHit(hits int, lim lifecycleLimits) (TrackState, lifecycleEvent) {
	switch s {
	case StateTentative:
		if hits >= lim.confirmThreshold {
			return StateConfirmed, eventConfirmed
		}
		return StateTentative, eventNone
	case StateOccluded:
		return StateConfirmed, eventRecovered
	case StateConfirmed:
		return StateConfirmed, eventNone
	}
	return s, eventNone
}

// onMiss returns the state that follows an unmatched frame. misses counts
// consecutive misses including this one.
func (s TrackState) onMiss(misses int, lim lifecycleLimits) (TrackState, lifecycleEvent) {
	switch s {
	case StateTentative:
		// No occlusion grace period before confirmation.
		if misses >= lim.tentativeDrop {
			return StateRetired, eventRetired
		}
		return StateTentative, eventNone
	case StateConfirmed:
		if misses >= lim.occlusionTimeout {
			return StateRetired, eventRetired
		}
		return StateOccluded, eventOccluded
	case StateOccluded:
		if misses >= lim.occlusionTimeout {
			return StateRetired, eventRetired
		}
		return StateOccluded, eventNone
	}
	return s, eventNone
}

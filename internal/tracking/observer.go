package tracking

// Observer receives lifecycle notifications from a Tracker. Calls are made
// synchronously on the processing goroutine after the frame has been
// committed and the tracker lock released, in the order the events occurred.
// Implementations must not call ProcessFrame from a callback.
type Observer interface {
	// TrackConfirmed is called when a tentative track is promoted.
	TrackConfirmed(id TrackID)
	// TrackRetired is called when a track retires; from is its last live state.
	TrackRetired(id TrackID, from TrackState)
	// FilterReset is called when a track's filter diverged and was reset.
	FilterReset(id TrackID)
	// IdentitySwitched is called when a new track spawns where a recently
	// retired confirmed track was last seen.
	IdentitySwitched(prev, cur TrackID)
}

// NopObserver implements Observer with no-op methods. Embed it to
// implement only the callbacks of interest.
type NopObserver struct{}

func (NopObserver) TrackConfirmed(TrackID)            {}
func (NopObserver) TrackRetired(TrackID, TrackState)  {}
func (NopObserver) FilterReset(TrackID)               {}
func (NopObserver) IdentitySwitched(TrackID, TrackID) {}

type eventKind uint8

const (
	evConfirmed eventKind = iota + 1
	evRetired
	evFilterReset
	evIdentitySwitch
)

type trackEvent struct {
	kind eventKind
	id   TrackID
	prev TrackID    // evIdentitySwitch
	from TrackState // evRetired
}

// maxFrameEvents bounds the events one frame can produce. A slot yields at
// most a filter reset and a retirement, followed by a spawn with an
// identity switch and an immediate confirmation.
const maxFrameEvents = 4 * MaxTracks

// eventBuffer is a fixed-capacity event queue reused every frame.
type eventBuffer struct {
	events [maxFrameEvents]trackEvent
	n      int
}

func (b *eventBuffer) push(e trackEvent) {
	if b.n < len(b.events) {
		b.events[b.n] = e
		b.n++
	}
}

func (b *eventBuffer) dispatch(o Observer) {
	for _, e := range b.events[:b.n] {
		switch e.kind {
		case evConfirmed:
			o.TrackConfirmed(e.id)
		case evRetired:
			o.TrackRetired(e.id, e.from)
		case evFilterReset:
			o.FilterReset(e.id)
		case evIdentitySwitch:
			o.IdentitySwitched(e.prev, e.id)
		}
	}
}

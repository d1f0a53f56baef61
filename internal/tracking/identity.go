package tracking

// retiredTrack remembers where a confirmed track was last seen.
type retiredTrack struct {
	id    TrackID
	x, y  float32
	frame uint64 // frame counter at retirement
	valid bool
}

// retiredRing is a fixed ring of recently retired confirmed tracks. It
// feeds the identity-switch statistic and keeps their identifiers out of
// circulation after the ID counter wraps.
type retiredRing struct {
	entries [MaxTracks]retiredTrack
	next    int
}

func (r *retiredRing) push(id TrackID, x, y float32, frame uint64) {
	r.entries[r.next] = retiredTrack{id: id, x: x, y: y, frame: frame, valid: true}
	r.next = (r.next + 1) % len(r.entries)
}

// claim finds the closest remembered track within gate of (x, y) that
// retired no more than window frames before frame. A match is consumed.
func (r *retiredRing) claim(x, y, gate float32, frame uint64, window int) (TrackID, bool) {
	best := -1
	var bestD2 float32
	for i := range r.entries {
		e := &r.entries[i]
		if !e.valid || frame-e.frame > uint64(window) {
			continue
		}
		dx, dy := x-e.x, y-e.y
		d2 := dx*dx + dy*dy
		if d2 > gate*gate {
			continue
		}
		if best < 0 || d2 < bestD2 {
			best, bestD2 = i, d2
		}
	}
	if best < 0 {
		return NoTrack, false
	}
	r.entries[best].valid = false
	return r.entries[best].id, true
}

// holds reports whether id belongs to a remembered track still inside the
// window.
func (r *retiredRing) holds(id TrackID, frame uint64, window int) bool {
	for i := range r.entries {
		e := &r.entries[i]
		if e.valid && e.id == id && frame-e.frame <= uint64(window) {
			return true
		}
	}
	return false
}

func (r *retiredRing) clear() {
	*r = retiredRing{}
}

// allocateID hands out the next identifier. Identifiers increase
// monotonically from 1; after 255 the counter wraps to 1 and skips any
// identifier held by a live track or a recently retired confirmed track.
// With at most MaxTracks live and MaxTracks remembered identifiers a free
// one always exists.
func (t *Tracker) allocateID() TrackID {
	for i := 0; i < 255; i++ {
		id := t.nextID
		t.nextID++
		if t.nextID == NoTrack {
			t.nextID = 1
		}
		if !t.idInUse(id) {
			return id
		}
	}
	// Unreachable while 2*MaxTracks < 255.
	return t.nextID
}

func (t *Tracker) idInUse(id TrackID) bool {
	for i := range t.tracks {
		if t.tracks[i].State.Active() && t.tracks[i].ID == id {
			return true
		}
	}
	return t.retired.holds(id, t.frameCount, t.config.OcclusionTimeoutFrames)
}

package tracking

import "math"

// Unmatched marks a track or detection with no partner in an Assignment.
const Unmatched = -1

// Prediction is the predicted position of one live track.
type Prediction struct {
	ID TrackID
	X  float32
	Y  float32
}

// Assignment is a one-to-one partial matching between predictions and
// detections. Indices refer to positions in the slices passed to Associate.
type Assignment struct {
	TrackToDet [MaxTracks]int     // detection index per prediction, or Unmatched
	DetToTrack [MaxDetections]int // prediction index per detection, or Unmatched
	Distance   [MaxTracks]float32 // distance of each committed pair (mm)
	Matches    int                // number of committed pairs
}

// Associator performs gated greedy global-minimum association. The zero
// value is ready to use; it keeps the distance matrix of the last call as
// scratch space so association does not allocate.
type Associator struct {
	dist   [MaxTracks][MaxDetections]float32
	tracks int
	dets   int
}

// Associate matches predictions to detections. It repeatedly commits the
// smallest remaining distance that lies within gate (inclusive), breaking
// ties by lowest track ID and then lowest detection index, until no
// eligible pair remains.
//
// At most MaxTracks predictions and MaxDetections detections are considered.
func (a *Associator) Associate(preds []Prediction, dets []Detection, gate float32) Assignment {
	var asg Assignment
	for i := range asg.TrackToDet {
		asg.TrackToDet[i] = Unmatched
	}
	for j := range asg.DetToTrack {
		asg.DetToTrack[j] = Unmatched
	}

	nt := min(len(preds), MaxTracks)
	nd := min(len(dets), MaxDetections)
	a.tracks, a.dets = nt, nd

	for i := 0; i < nt; i++ {
		for j := 0; j < nd; j++ {
			dx := float64(dets[j].XMm) - float64(preds[i].X)
			dy := float64(dets[j].YMm) - float64(preds[i].Y)
			a.dist[i][j] = float32(math.Sqrt(dx*dx + dy*dy))
		}
	}

	for {
		bi, bj := Unmatched, Unmatched
		var best float32
		for i := 0; i < nt; i++ {
			if asg.TrackToDet[i] != Unmatched {
				continue
			}
			for j := 0; j < nd; j++ {
				if asg.DetToTrack[j] != Unmatched {
					continue
				}
				d := a.dist[i][j]
				// Also rejects NaN.
				if !(d <= gate) {
					continue
				}
				if bi == Unmatched || d < best ||
					(d == best && (preds[i].ID < preds[bi].ID ||
						(preds[i].ID == preds[bi].ID && j < bj))) {
					bi, bj, best = i, j, d
				}
			}
		}
		if bi == Unmatched {
			break
		}
		asg.TrackToDet[bi] = bj
		asg.DetToTrack[bj] = bi
		asg.Distance[bi] = best
		asg.Matches++
	}
	return asg
}

// Distance returns the distance computed between prediction i and detection
// j by the last Associate call.
func (a *Associator) Distance(i, j int) (float32, bool) {
	if i < 0 || i >= a.tracks || j < 0 || j >= a.dets {
		return 0, false
	}
	return a.dist[i][j], true
}

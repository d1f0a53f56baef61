// Package tracking owns the radar multi-target tracker.
//
// Responsibilities: per-track constant-velocity Kalman estimation, gated
// greedy nearest-neighbour association, the track lifecycle
// (tentative, confirmed, occluded, retired), identifier allocation and
// tracker statistics.
// Key types: Tracker, Track, DetectionFrame, TrackFrame.
//
// The tracker works over a fixed pool of MaxTracks slots and does not
// allocate while processing a frame. A Tracker is written by one goroutine at
// a time; see internal/pipeline for the worker that serialises frames from
// other goroutines.
//
// No I/O is performed here other than the optional log streams configured
// with SetLogWriters.
package tracking

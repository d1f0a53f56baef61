// Package pipeline runs the tracker as a single dedicated processing task.
//
// Producers on other goroutines hand detection frames to a FrameWorker,
// which feeds them to the tracker one at a time, in arrival order, and
// forwards each output frame to a Sink. The worker is the only goroutine
// that calls ProcessFrame, so frame processing stays single-writer.
package pipeline

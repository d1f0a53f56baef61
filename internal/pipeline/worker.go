package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/r-mccarty/rs-1-sub003/internal/config"
	"github.com/r-mccarty/rs-1-sub003/internal/tracking"
)

// ErrClosed is returned when a frame is submitted to a closed worker.
var ErrClosed = errors.New("pipeline: worker closed")

// ErrRunning is returned by Run if the worker is already running.
var ErrRunning = errors.New("pipeline: worker already running")

// FrameProcessor turns one detection frame into one track frame.
// *tracking.Tracker satisfies it.
type FrameProcessor interface {
	ProcessFrame(frame tracking.DetectionFrame) (tracking.TrackFrame, error)
}

// Sink receives every track frame the worker produces, in order.
type Sink interface {
	WriteTrackFrame(frame tracking.TrackFrame) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(frame tracking.TrackFrame) error

// WriteTrackFrame calls f(frame).
func (f SinkFunc) WriteTrackFrame(frame tracking.TrackFrame) error { return f(frame) }

// WorkerStats counts frames through the worker.
type WorkerStats struct {
	Submitted  uint64 `json:"submitted"`   // accepted onto the queue
	Dropped    uint64 `json:"dropped"`     // queue full on Submit
	Processed  uint64 `json:"processed"`   // produced a track frame
	Rejected   uint64 `json:"rejected"`    // refused by the processor
	SinkErrors uint64 `json:"sink_errors"` // sink returned an error
}

// FrameWorker serialises detection frames from any number of producers into
// a single FrameProcessor.
type FrameWorker struct {
	proc FrameProcessor
	sink Sink

	frameCh   chan tracking.DetectionFrame
	frameDone chan struct{}

	mu      sync.RWMutex // guards closed against sends on frameCh
	closed  bool
	running atomic.Bool

	submitted  atomic.Uint64
	dropped    atomic.Uint64
	processed  atomic.Uint64
	rejected   atomic.Uint64
	sinkErrors atomic.Uint64
}

// NewFrameWorker creates a worker with a queue of queueDepth frames. A
// queueDepth below 1 uses the tuning default. sink may be nil.
func NewFrameWorker(proc FrameProcessor, sink Sink, queueDepth int) *FrameWorker {
	if queueDepth < 1 {
		queueDepth = config.EmptyTuningConfig().GetFrameQueueDepth()
	}
	return &FrameWorker{
		proc:      proc,
		sink:      sink,
		frameCh:   make(chan tracking.DetectionFrame, queueDepth),
		frameDone: make(chan struct{}),
	}
}

// Run processes queued frames until ctx is cancelled or the worker is
// closed. After Close, frames already queued are processed before Run
// returns nil. On cancellation queued frames are discarded and Run returns
// ctx.Err().
func (w *FrameWorker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(w.frameDone)

	if diagEnabled() {
		diagf("Frame worker started: queue depth %d", cap(w.frameCh))
	}
	for {
		select {
		case <-ctx.Done():
			if diagEnabled() {
				diagf("Frame worker cancelled: %d frames left in queue", len(w.frameCh))
			}
			return ctx.Err()
		case frame, ok := <-w.frameCh:
			if !ok {
				if diagEnabled() {
					diagf("Frame worker drained and stopped")
				}
				return nil
			}
			w.handle(frame)
		}
	}
}

func (w *FrameWorker) handle(frame tracking.DetectionFrame) {
	out, err := w.proc.ProcessFrame(frame)
	if err != nil {
		w.rejected.Add(1)
		if opsEnabled() {
			opsf("Rejected frame seq=%d ts=%d: %v", frame.Seq, frame.TimestampMs, err)
		}
		return
	}
	w.processed.Add(1)
	if traceEnabled() {
		tracef("Frame seq=%d ts=%d: %d detections, %d tracks reported",
			frame.Seq, frame.TimestampMs, len(frame.Detections), out.Count)
	}
	if w.sink == nil {
		return
	}
	if err := w.sink.WriteTrackFrame(out); err != nil {
		w.sinkErrors.Add(1)
		if opsEnabled() {
			opsf("Sink failed for frame seq=%d: %v", out.Seq, err)
		}
	}
}

// Submit queues a frame without blocking. It returns false if the worker is
// closed or the queue is full; a full queue counts as a dropped frame.
func (w *FrameWorker) Submit(frame tracking.DetectionFrame) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.frameCh <- frame:
		w.submitted.Add(1)
		return true
	default:
		// Queue full. Drop rather than stall the producer.
		w.dropped.Add(1)
		if opsEnabled() {
			opsf("Dropped frame seq=%d ts=%d: queue full", frame.Seq, frame.TimestampMs)
		}
		return false
	}
}

// SubmitWait queues a frame, blocking until there is room or ctx is done.
// It returns ErrClosed if the worker is closed or Run has returned, since
// nothing will drain the queue after that.
func (w *FrameWorker) SubmitWait(ctx context.Context, frame tracking.DetectionFrame) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case <-w.frameDone:
		return ErrClosed
	default:
	}
	select {
	case w.frameCh <- frame:
		w.submitted.Add(1)
		return nil
	case <-w.frameDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting frames. A running worker finishes the queued frames
// and then Run returns. Close is idempotent.
func (w *FrameWorker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.frameCh)
}

// Done is closed when Run returns.
func (w *FrameWorker) Done() <-chan struct{} {
	return w.frameDone
}

// Stats returns a snapshot of the worker counters.
func (w *FrameWorker) Stats() WorkerStats {
	return WorkerStats{
		Submitted:  w.submitted.Load(),
		Dropped:    w.dropped.Load(),
		Processed:  w.processed.Load(),
		Rejected:   w.rejected.Load(),
		SinkErrors: w.sinkErrors.Load(),
	}
}

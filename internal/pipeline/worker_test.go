package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-mccarty/rs-1-sub003/internal/config"
	"github.com/r-mccarty/rs-1-sub003/internal/testutil"
	"github.com/r-mccarty/rs-1-sub003/internal/tracking"
)

type collectSink struct {
	mu     sync.Mutex
	frames []tracking.TrackFrame
}

func (s *collectSink) WriteTrackFrame(f tracking.TrackFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *collectSink) seqs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Seq
	}
	return out
}

func newTracker(t *testing.T) *tracking.Tracker {
	t.Helper()
	tr, err := tracking.NewTracker(tracking.DefaultTrackerConfig())
	require.NoError(t, err)
	return tr
}

func detFrame(i int, dets ...tracking.Detection) tracking.DetectionFrame {
	return tracking.DetectionFrame{Detections: dets, TimestampMs: uint32(i * 30), Seq: uint32(i)}
}

func runWorker(ctx context.Context, w *FrameWorker) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	return errCh
}

func TestNewFrameWorker_DefaultQueueDepth(t *testing.T) {
	t.Parallel()

	w := NewFrameWorker(newTracker(t), nil, 0)
	assert.Equal(t, config.EmptyTuningConfig().GetFrameQueueDepth(), cap(w.frameCh))

	w = NewFrameWorker(newTracker(t), nil, 16)
	assert.Equal(t, 16, cap(w.frameCh))
}

func TestFrameWorker_ProcessesInOrder(t *testing.T) {
	t.Parallel()

	sink := &collectSink{}
	w := NewFrameWorker(newTracker(t), sink, 4)
	errCh := runWorker(context.Background(), w)

	ctx := context.Background()
	for _, f := range testutil.NewScenario().Repeat(10, tracking.Detection{XMm: 0, YMm: 1500}).Frames() {
		require.NoError(t, w.SubmitWait(ctx, f))
	}
	w.Close()
	require.NoError(t, <-errCh)
	<-w.Done()

	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, sink.seqs())
	assert.Equal(t, WorkerStats{Submitted: 10, Processed: 10}, w.Stats())

	last := sink.frames[len(sink.frames)-1]
	require.Equal(t, 1, last.Count)
	assert.Equal(t, tracking.StateConfirmed, last.Tracks[0].State)
}

func TestFrameWorker_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	w := NewFrameWorker(newTracker(t), nil, 2)
	assert.True(t, w.Submit(detFrame(1)))
	assert.True(t, w.Submit(detFrame(2)))
	assert.False(t, w.Submit(detFrame(3)))

	stats := w.Stats()
	assert.Equal(t, uint64(2), stats.Submitted)
	assert.Equal(t, uint64(1), stats.Dropped)

	// The queued frames are still processed once the worker runs.
	w.Close()
	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, uint64(2), w.Stats().Processed)
}

func TestFrameWorker_CountsRejectedFrames(t *testing.T) {
	t.Parallel()

	sink := &collectSink{}
	tr := newTracker(t)
	w := NewFrameWorker(tr, sink, 4)

	oversized := make([]tracking.Detection, tracking.MaxDetections+1)
	require.True(t, w.Submit(detFrame(1, oversized...)))
	require.True(t, w.Submit(detFrame(2, tracking.Detection{XMm: 100, YMm: 100})))
	w.Close()
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, WorkerStats{Submitted: 2, Processed: 1, Rejected: 1}, w.Stats())
	assert.Equal(t, []uint64{1}, sink.seqs(), "rejected frame must not advance the tracker")
	assert.Equal(t, uint64(1), tr.Stats().FramesProcessed)
}

func TestFrameWorker_CountsSinkErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	calls := 0
	w := NewFrameWorker(newTracker(t), SinkFunc(func(tracking.TrackFrame) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}), 4)

	for i := 1; i <= 3; i++ {
		require.True(t, w.Submit(detFrame(i)))
	}
	w.Close()
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 3, calls)
	assert.Equal(t, WorkerStats{Submitted: 3, Processed: 3, SinkErrors: 1}, w.Stats())
}

func TestFrameWorker_Cancellation(t *testing.T) {
	t.Parallel()

	w := NewFrameWorker(newTracker(t), nil, 4)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := runWorker(ctx, w)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	<-w.Done()

	assert.ErrorIs(t, w.Run(context.Background()), ErrRunning)
}

func TestFrameWorker_SubmitAfterClose(t *testing.T) {
	t.Parallel()

	w := NewFrameWorker(newTracker(t), nil, 4)
	w.Close()
	w.Close()

	assert.False(t, w.Submit(detFrame(1)))
	assert.ErrorIs(t, w.SubmitWait(context.Background(), detFrame(1)), ErrClosed)
	assert.Equal(t, WorkerStats{}, w.Stats(), "closed worker does not count a drop")
}

func TestFrameWorker_SubmitWaitHonoursContext(t *testing.T) {
	t.Parallel()

	w := NewFrameWorker(newTracker(t), nil, 1)
	require.True(t, w.Submit(detFrame(1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.SubmitWait(ctx, detFrame(2)), context.Canceled)
	assert.Equal(t, uint64(1), w.Stats().Submitted)
}

func TestFrameWorker_SubmitWaitAfterRunReturns(t *testing.T) {
	t.Parallel()

	w := NewFrameWorker(newTracker(t), nil, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
	<-w.Done()

	// Nothing drains the queue any more.
	assert.ErrorIs(t, w.SubmitWait(context.Background(), detFrame(1)), ErrClosed)
	require.True(t, w.Submit(detFrame(2)))
	require.True(t, w.Submit(detFrame(3)))

	waitErr := make(chan error, 1)
	go func() { waitErr <- w.SubmitWait(context.Background(), detFrame(4)) }()
	select {
	case err := <-waitErr:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("SubmitWait blocked on a full queue after Run returned")
	}

	closed := make(chan struct{})
	go func() {
		w.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked after Run returned")
	}
	assert.Equal(t, uint64(2), w.Stats().Submitted)
	assert.Zero(t, w.Stats().Processed)
}

func TestFrameWorker_ConcurrentProducers(t *testing.T) {
	t.Parallel()

	const producers, perProducer = 4, 25

	sink := &collectSink{}
	tr := newTracker(t)
	w := NewFrameWorker(tr, sink, 8)
	errCh := runWorker(context.Background(), w)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				d := tracking.Detection{XMm: int16(p * 1000), YMm: 2000}
				assert.NoError(t, w.SubmitWait(context.Background(), detFrame(p*perProducer+i, d)))
			}
		}(p)
	}
	wg.Wait()
	w.Close()
	require.NoError(t, <-errCh)

	assert.Equal(t, uint64(producers*perProducer), w.Stats().Processed)
	assert.Equal(t, uint64(producers*perProducer), tr.Stats().FramesProcessed)

	// Output sequence numbers are assigned by the tracker, so they are
	// contiguous whatever the producer interleaving.
	seqs := sink.seqs()
	for i, s := range seqs {
		assert.Equal(t, uint64(i+1), s)
	}
}

func TestLogStreams(t *testing.T) {
	SetLogWriters(nil, nil, nil)
	assert.False(t, opsEnabled())
	assert.False(t, diagEnabled())
	assert.False(t, traceEnabled())

	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

	w := NewFrameWorker(newTracker(t), nil, 1)
	require.True(t, w.Submit(detFrame(1)))
	require.False(t, w.Submit(detFrame(2)))
	w.Close()
	require.NoError(t, w.Run(context.Background()))

	assert.Contains(t, ops.String(), "[pipeline] ")
	assert.Contains(t, ops.String(), "Dropped frame seq=2")
	assert.Contains(t, diag.String(), "Frame worker started")
	assert.Contains(t, diag.String(), "drained and stopped")
	assert.Contains(t, trace.String(), "Frame seq=1")

	SetLogWriters(&ops, nil, nil)
	assert.True(t, opsEnabled())
	assert.False(t, traceEnabled())
	trace.Reset()
	w = NewFrameWorker(newTracker(t), nil, 1)
	require.True(t, w.Submit(detFrame(3)))
	w.Close()
	require.NoError(t, w.Run(context.Background()))
	assert.Empty(t, trace.String(), "disabled stream stays quiet")
}

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/r-mccarty/rs-1-sub003/internal/config"
	"github.com/r-mccarty/rs-1-sub003/internal/pipeline"
	"github.com/r-mccarty/rs-1-sub003/internal/timeutil"
	"github.com/r-mccarty/rs-1-sub003/internal/tracking"
	"github.com/r-mccarty/rs-1-sub003/internal/tracking/debug"
	"github.com/r-mccarty/rs-1-sub003/internal/version"
)

// maxLineBytes bounds one line of the detection log.
const maxLineBytes = 64 * 1024

// Summary describes a finished replay.
type Summary struct {
	RunID       string                 `json:"run_id"`
	Build       version.Info           `json:"build"`
	FramesRead  int                    `json:"frames_read"`
	Tracker     tracking.Stats         `json:"tracker"`
	Worker      pipeline.WorkerStats   `json:"worker"`
	FinalTracks []tracking.TrackOutput `json:"final_tracks"`
}

// replayConfig holds everything a replay needs besides its input and output.
type replayConfig struct {
	tuning   *config.TuningConfig
	realtime bool
	clock    timeutil.Clock

	// watch, when set, is a tuning file whose runtime-tunable values are
	// applied to the tracker as it changes.
	watch string

	// debugOut, when set, receives one debug frame per processed frame.
	debugOut io.Writer

	observer tracking.Observer
}

// replay feeds every detection frame from in through a tracker and writes
// each track frame to out as a JSON line.
func replay(ctx context.Context, rc replayConfig, in io.Reader, out io.Writer) (*Summary, error) {
	if rc.tuning == nil {
		rc.tuning = config.EmptyTuningConfig()
	}
	if rc.clock == nil {
		rc.clock = timeutil.RealClock{}
	}

	opts := []tracking.Option{tracking.WithClock(rc.clock)}
	if rc.observer != nil {
		opts = append(opts, tracking.WithObserver(rc.observer))
	}
	var collector *debug.Collector
	if rc.debugOut != nil {
		collector = debug.NewCollector()
		collector.SetEnabled(true)
		opts = append(opts, tracking.WithDebugCollector(collector))
	}

	tr, err := tracking.NewTracker(tracking.TrackerConfigFromTuning(rc.tuning), opts...)
	if err != nil {
		return nil, fmt.Errorf("create tracker: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if rc.watch != "" {
		tw, err := config.NewTuningWatcher(rc.watch, 0)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", rc.watch, err)
		}
		go tw.Run(ctx,
			func(c *config.TuningConfig) { applyRuntimeTuning(tr, c) },
			func(err error) { log.Printf("tuning reload: %v", err) })
	}

	sink := &jsonLinesSink{
		enc:       json.NewEncoder(out),
		collector: collector,
	}
	if rc.debugOut != nil {
		sink.debugEnc = json.NewEncoder(rc.debugOut)
	}

	worker := pipeline.NewFrameWorker(tr, sink, rc.tuning.GetFrameQueueDepth())
	runErr := make(chan error, 1)
	go func() { runErr <- worker.Run(ctx) }()

	read, readErr := feed(ctx, rc, worker, in)
	worker.Close()
	if err := <-runErr; err != nil && readErr == nil {
		readErr = err
	}

	summary := &Summary{
		RunID:      uuid.NewString(),
		Build:      version.Get(),
		FramesRead: read,
		Tracker:    tr.Stats(),
		Worker:     worker.Stats(),
	}
	state := tr.State()
	summary.FinalTracks = make([]tracking.TrackOutput, 0, tracking.MaxTracks)
	for i := range state.Tracks {
		if state.Tracks[i].State.Active() {
			summary.FinalTracks = append(summary.FinalTracks, state.Tracks[i].Output())
		}
	}
	return summary, readErr
}

// feed reads the detection log and hands frames to the worker. In realtime
// mode frames are paced by the frame interval and dropped if the worker
// falls behind; otherwise every frame is queued.
func feed(ctx context.Context, rc replayConfig, worker *pipeline.FrameWorker, in io.Reader) (int, error) {
	var tick <-chan time.Time
	if rc.realtime {
		ticker := rc.clock.NewTicker(rc.tuning.GetFrameInterval())
		defer ticker.Stop()
		tick = ticker.C()
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	read := 0
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var frame tracking.DetectionFrame
		if err := json.Unmarshal(text, &frame); err != nil {
			return read, fmt.Errorf("line %d: %w", line, err)
		}
		read++

		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return read, ctx.Err()
			}
			worker.Submit(frame)
			continue
		}
		if err := worker.SubmitWait(ctx, frame); err != nil {
			return read, err
		}
	}
	if err := scanner.Err(); err != nil {
		return read, fmt.Errorf("read detections: %w", err)
	}
	return read, nil
}

// applyRuntimeTuning pushes the runtime-tunable values of c to the tracker.
// Values outside the runtime ranges are logged and skipped.
func applyRuntimeTuning(tr *tracking.Tracker, c *config.TuningConfig) {
	current := tr.Config()

	gate := float32(c.GetGateDistanceMm())
	if gate != current.GateDistanceMm {
		if err := tr.SetGateDistance(gate); err != nil {
			log.Printf("gate distance %.0f mm not applied: %v", gate, err)
		} else {
			log.Printf("gate distance set to %.0f mm", gate)
		}
	}

	timeout := c.GetOcclusionTimeoutFrames()
	if timeout != current.OcclusionTimeoutFrames {
		if err := tr.SetOcclusionTimeout(timeout); err != nil {
			log.Printf("occlusion timeout %d frames not applied: %v", timeout, err)
		} else {
			log.Printf("occlusion timeout set to %d frames", timeout)
		}
	}
}

// jsonLinesSink writes track frames, and optionally the matching debug
// frames, as JSON lines. It runs on the worker goroutine, which is also
// the only user of the collector.
type jsonLinesSink struct {
	enc       *json.Encoder
	collector *debug.Collector
	debugEnc  *json.Encoder
}

func (s *jsonLinesSink) WriteTrackFrame(f tracking.TrackFrame) error {
	if err := s.enc.Encode(f); err != nil {
		return err
	}
	if s.collector == nil || s.debugEnc == nil {
		return nil
	}
	if df := s.collector.Emit(); df != nil {
		return s.debugEnc.Encode(df)
	}
	return nil
}

// logObserver logs lifecycle notifications.
type logObserver struct {
	logger *log.Logger
}

func (o logObserver) TrackConfirmed(id tracking.TrackID) {
	o.logger.Printf("track %d confirmed", id)
}

func (o logObserver) TrackRetired(id tracking.TrackID, from tracking.TrackState) {
	o.logger.Printf("track %d retired from %s", id, from)
}

func (o logObserver) FilterReset(id tracking.TrackID) {
	o.logger.Printf("track %d filter reset", id)
}

func (o logObserver) IdentitySwitched(prev, cur tracking.TrackID) {
	o.logger.Printf("track %d reacquired as %d", prev, cur)
}

// isCancel reports whether err only says the replay was interrupted.
func isCancel(err error) bool {
	return errors.Is(err, context.Canceled)
}

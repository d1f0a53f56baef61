// Command track-replay runs a recorded detection log through the tracker.
//
// The input is JSON lines, one detection frame per line:
//
//	{"timestamp_ms": 30, "seq": 1, "detections": [{"x_mm": 120, "y_mm": 1850}]}
//
// Each processed frame is written to the output as a JSON line of reported
// tracks. A summary with the tracker statistics is printed to stderr when the
// log is exhausted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/r-mccarty/rs-1-sub003/internal/config"
	"github.com/r-mccarty/rs-1-sub003/internal/pipeline"
	"github.com/r-mccarty/rs-1-sub003/internal/tracking"
	"github.com/r-mccarty/rs-1-sub003/internal/version"
)

var (
	configPath  = flag.String("config", "", "Tuning file (.json, .yaml or .yml); built-in defaults when empty")
	inPath      = flag.String("in", "-", "Detection log to replay, - for stdin")
	outPath     = flag.String("out", "-", "Track frame output, - for stdout")
	realtime    = flag.Bool("realtime", false, "Pace frames at the configured frame interval, dropping frames the tracker cannot keep up with")
	watch       = flag.Bool("watch", false, "Apply gate distance and occlusion timeout changes from -config while replaying")
	debugFrames = flag.String("debug-frames", "", "Write per-frame association and filter internals as JSON lines to this file")
	verbose     = flag.Bool("v", false, "Log lifecycle events and tracker diagnostics to stderr")
	trace       = flag.Bool("trace", false, "Log per-frame telemetry to stderr (implies -v)")
	showVersion = flag.Bool("version", false, "Print the build version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("track-replay", version.Get())
		return
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	} else if *watch {
		log.Fatal("-watch requires -config")
	}

	in, closeIn := openInput(*inPath)
	defer closeIn()
	out, closeOut := openOutput(*outPath)
	defer closeOut()

	rc := replayConfig{tuning: tuning, realtime: *realtime}
	if *watch {
		rc.watch = *configPath
	}
	if *debugFrames != "" {
		f, err := os.Create(*debugFrames)
		if err != nil {
			log.Fatalf("failed to create debug frame file: %v", err)
		}
		defer f.Close()
		rc.debugOut = f
	}

	if *verbose || *trace {
		var traceW io.Writer
		if *trace {
			traceW = os.Stderr
		}
		tracking.SetLogWriters(os.Stderr, os.Stderr, traceW)
		pipeline.SetLogWriters(os.Stderr, os.Stderr, traceW)
		rc.observer = logObserver{logger: log.New(os.Stderr, "[replay] ", log.LstdFlags|log.Lmicroseconds)}
	} else {
		tracking.SetLogWriters(os.Stderr, nil, nil)
		pipeline.SetLogWriters(os.Stderr, nil, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := replay(ctx, rc, in, out)
	if summary != nil {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(summary); encErr != nil {
			log.Printf("failed to write summary: %v", encErr)
		}
	}
	if err != nil && !isCancel(err) {
		log.Fatalf("replay failed: %v", err)
	}
}

func openInput(path string) (io.Reader, func()) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}
	}
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open detection log: %v", err)
	}
	return f, func() { f.Close() }
}

func openOutput(path string) (io.Writer, func()) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			log.Printf("failed to close output: %v", err)
		}
	}
}

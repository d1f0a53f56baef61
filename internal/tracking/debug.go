package tracking

import (
	"io"
	"log"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the tracking
// package. Pass nil for any writer to disable that stream. All streams are
// disabled by default.
//
// Not safe to call while frames are being processed.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[tracking] ", ops)
	diagLogger = newLogger("[tracking] ", diag)
	traceLogger = newLogger("[tracking] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (filter divergence, rejected input).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (lifecycle transitions, dropped spawns).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs to the trace stream (per-frame telemetry).
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}

// Callers on the frame path check these first so the argument list is not
// built when the stream is off.
func opsEnabled() bool   { return opsLogger != nil }
func diagEnabled() bool  { return diagLogger != nil }
func traceEnabled() bool { return traceLogger != nil }

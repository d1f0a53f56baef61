package pipeline

import (
	"io"
	"log"
)

// Frame worker log streams. Each is off until SetLogWriters gives it a
// writer.
//
//	ops    frames lost on the way through: queue-full drops, frames the
//	       tracker refused, sink write failures
//	diag   worker start, drain and cancellation
//	trace  one line per processed frame
var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters routes the frame worker streams. A nil writer turns its
// stream off.
//
// Not safe to call while a worker is running.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = workerLogger(ops)
	diagLogger = workerLogger(diag)
	traceLogger = workerLogger(trace)
}

func workerLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "[pipeline] ", log.LstdFlags|log.Lmicroseconds)
}

func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}

// Submit and handle run once per frame and check these before building a
// log line.
func opsEnabled() bool   { return opsLogger != nil }
func diagEnabled() bool  { return diagLogger != nil }
func traceEnabled() bool { return traceLogger != nil }

package notifier

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Sink receives the user-visible report of a dispatch, typically the build's
// own log stream.
type Sink interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// Discard is a Sink that drops everything.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Infof(string, ...any) {}
func (discardSink) Warnf(string, ...any) {}

// WriterSink writes one line per report to w. Warnings are prefixed with
// "WARNING: ".
func WriterSink(w io.Writer) Sink {
	return &writerSink{w: w}
}

type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *writerSink) Infof(format string, args ...any) {
	s.write("", format, args...)
}

func (s *writerSink) Warnf(format string, args ...any) {
	s.write("WARNING: ", format, args...)
}

func (s *writerSink) write(prefix, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.w, prefix+format+"\n", args...)
}

// LogSink forwards reports to a slog logger.
func LogSink(logger *slog.Logger) Sink {
	if logger == nil {
		return Discard
	}
	return logSink{logger: logger}
}

type logSink struct {
	logger *slog.Logger
}

func (s logSink) Infof(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...))
}

func (s logSink) Warnf(format string, args ...any) {
	s.logger.Warn(fmt.Sprintf(format, args...))
}

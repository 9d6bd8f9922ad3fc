package simkernel

import (
	"fmt"
	"log"
	"time"

	"github.com/joeycumines/go-catrate"
)

// LogLevel is the severity of a diagnostic emitted by the kernel.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", l)
	}
}

// Logger is the interface the kernel reports diagnostics through. It is
// intentionally minimal — a handful of printf-style methods, the same shape
// the teacher event loop falls back to wherever it doesn't reach for its own
// structured LogEntry type — so the bundled [DefaultLogger], or any logger
// with these four printf-style methods (such as zap's SugaredLogger),
// satisfies it directly. A bare *log.Logger does not; wrap it with
// [NewDefaultLogger].
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// nopLogger discards everything; it is the kernel's default.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// DefaultLogger is a minimal level-filtered Logger backed by the standard
// library's log.Logger, in the same spirit as the teacher event loop's
// DefaultLogger but without the terminal-detection/JSON dual-format
// machinery this project has no use for.
type DefaultLogger struct {
	level  LogLevel
	target *log.Logger
}

// NewDefaultLogger creates a DefaultLogger that writes to dst (typically
// log.Default()) at or above level.
func NewDefaultLogger(level LogLevel, dst *log.Logger) *DefaultLogger {
	return &DefaultLogger{level: level, target: dst}
}

func (l *DefaultLogger) logf(level LogLevel, format string, args ...any) {
	if level < l.level {
		return
	}
	l.target.Printf("[%s] "+format, append([]any{level}, args...)...)
}

func (l *DefaultLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *DefaultLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

// rateLimitedLogger wraps a Logger, collapsing repeated diagnostics of the
// same category into at most a handful per window. The kernel uses this to
// guard its own overload/starvation warnings, which would otherwise fire
// once per round under sustained backpressure and flood the sink.
type rateLimitedLogger struct {
	Logger
	limiter *catrate.Limiter
}

// newRateLimitedLogger wraps inner with a limiter admitting at most burst
// occurrences of a given category per window.
func newRateLimitedLogger(inner Logger, window time.Duration, burst int) *rateLimitedLogger {
	return &rateLimitedLogger{
		Logger:  inner,
		limiter: catrate.NewLimiter(map[time.Duration]int{window: burst}),
	}
}

// warnRateLimited emits a warning under category, subject to the configured
// rate limit; suppressed occurrences are silently dropped.
func (l *rateLimitedLogger) warnRateLimited(category string, format string, args ...any) {
	if _, ok := l.limiter.Allow(category); ok {
		l.Warnf(format, args...)
	}
}

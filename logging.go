package paramgrid

import (
	"context"
	"log/slog"
	"time"
)

// LogLevel classifies a LogEvent.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEvent describes one store operation for logging.
type LogEvent struct {
	Operation string
	Param     string
	Records   int
	Duration  time.Duration
	Level     LogLevel
	Message   string
	Err       error
}

// Logger records store events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}

// NewSlogLogger forwards events to logger as structured records.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) Log(event LogEvent) {
	level := slog.LevelInfo
	switch event.Level {
	case LogLevelDebug:
		level = slog.LevelDebug
	case LogLevelWarn:
		level = slog.LevelWarn
	case LogLevelError:
		level = slog.LevelError
	}
	if event.Err != nil && event.Level == "" {
		level = slog.LevelError
	}
	msg := event.Message
	if msg == "" {
		msg = event.Operation
	}
	attrs := []slog.Attr{slog.String("operation", event.Operation)}
	if event.Param != "" {
		attrs = append(attrs, slog.String("param", event.Param))
	}
	if event.Records > 0 {
		attrs = append(attrs, slog.Int("records", event.Records))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// MultiLogger fans every event out to each non-nil logger in order.
func MultiLogger(loggers ...Logger) Logger {
	out := make(multiLogger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return noopLogger{}
	}
	return out
}

type multiLogger []Logger

func (m multiLogger) Log(event LogEvent) {
	for _, l := range m {
		l.Log(event)
	}
}

package paramgrid

import (
	"fmt"
	"time"
)

// EvaluatorLogEvent reports one rule evaluated against one record.
type EvaluatorLogEvent struct {
	Engine string
	Expr   string
	Param  string
	// Record is the rendered record, e.g. {year=2020, value=0.5}.
	Record   string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger receives rule evaluation events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

// EvaluatorLogs forwards evaluations to logger as "rule" operations. Failed
// evaluations are logged at error level, the rest at debug level.
func EvaluatorLogs(logger Logger) EvaluatorLogger {
	if logger == nil {
		return noopEvaluatorLogger{}
	}
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		entry := LogEvent{
			Operation: "rule",
			Param:     event.Param,
			Records:   1,
			Duration:  event.Duration,
			Level:     LogLevelDebug,
			Message:   fmt.Sprintf("%s %q on %s", event.Engine, event.Expr, event.Record),
		}
		if event.Err != nil {
			entry.Level = LogLevelError
			entry.Err = event.Err
		}
		logger.Log(entry)
	})
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

package paramgrid

import "testing"

func TestMultiLoggerFansOut(t *testing.T) {
	var first, second []LogEvent
	logger := MultiLogger(
		LoggerFunc(func(e LogEvent) { first = append(first, e) }),
		nil,
		LoggerFunc(func(e LogEvent) { second = append(second, e) }),
	)
	logger.Log(LogEvent{Operation: "extend", Param: "rate"})
	if len(first) != 1 || len(second) != 1 || second[0].Param != "rate" {
		t.Fatalf("expected both loggers to see the event, got %v %v", first, second)
	}

	if _, ok := MultiLogger(nil, nil).(noopLogger); !ok {
		t.Fatalf("expected no-op logger when every entry is nil")
	}
}

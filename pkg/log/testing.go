package log

import (
	"context"
	"fmt"
	"sync"
)

// Record is one captured log call.
type Record struct {
	Level   Level
	Message string
	Fields  map[string]interface{}
}

// TestLogger keeps every record in memory. Loggers derived with With share
// the same record list, so a TestLogger installed with SetLogger sees the
// output of every component. It is safe for concurrent use.
type TestLogger struct {
	sink   *recordSink
	level  Level
	fields map[string]interface{}
}

type recordSink struct {
	mu      sync.Mutex
	records []Record
}

// NewTestLogger returns a TestLogger that drops records below level.
func NewTestLogger(level Level) *TestLogger {
	return &TestLogger{sink: &recordSink{}, level: level}
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.record(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.record(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.record(LevelWarn, msg, fields) }

// Error records a leading error field under "error", like ZerologLogger.
func (t *TestLogger) Error(msg string, fields ...any) { t.record(LevelError, msg, fields) }

// With returns a logger that adds fields to every record.
func (t *TestLogger) With(fields ...any) Logger {
	merged := make(map[string]interface{}, len(t.fields)+len(fields)/2)
	for k, v := range t.fields {
		merged[k] = v
	}
	addPairs(merged, fields)
	return &TestLogger{sink: t.sink, level: t.level, fields: merged}
}

// Enabled reports whether records at level are kept.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return level >= t.level
}

func (t *TestLogger) record(level Level, msg string, fields []any) {
	if level < t.level {
		return
	}
	r := Record{Level: level, Message: msg, Fields: make(map[string]interface{}, len(t.fields)+len(fields)/2)}
	for k, v := range t.fields {
		r.Fields[k] = v
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			r.Fields["error"] = err.Error()
			fields = fields[1:]
		}
	}
	addPairs(r.Fields, fields)

	t.sink.mu.Lock()
	t.sink.records = append(t.sink.records, r)
	t.sink.mu.Unlock()
}

func addPairs(dst map[string]interface{}, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			dst[key] = err.Error()
			continue
		}
		dst[key] = fields[i+1]
	}
}

// Records returns a copy of everything captured so far.
func (t *TestLogger) Records() []Record {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	return append([]Record(nil), t.sink.records...)
}

// Find returns the records with the given message.
func (t *TestLogger) Find(msg string) []Record {
	var out []Record
	for _, r := range t.Records() {
		if r.Message == msg {
			out = append(out, r)
		}
	}
	return out
}

// HasField reports whether any record carries key = value.
func (t *TestLogger) HasField(key string, value interface{}) bool {
	for _, r := range t.Records() {
		if v, ok := r.Fields[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Reset drops every captured record.
func (t *TestLogger) Reset() {
	t.sink.mu.Lock()
	t.sink.records = nil
	t.sink.mu.Unlock()
}

// UseTestLogger installs a TestLogger as the global logger until cleanup runs.
// Loggers already obtained with GetLoggerWithName are not affected.
func UseTestLogger(level Level, cleanup func(func())) *TestLogger {
	prev := GetLogger()
	tl := NewTestLogger(level)
	SetLogger(tl)
	cleanup(func() { SetLogger(prev) })
	return tl
}

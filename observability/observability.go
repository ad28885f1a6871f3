package observability

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type int64Field struct {
	key string
	val int64
}

func (f int64Field) Key() string        { return f.key }
func (f int64Field) Value() interface{} { return f.val }

type float64Field struct {
	key string
	val float64
}

func (f float64Field) Key() string        { return f.key }
func (f float64Field) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field          { return stringField{key, value} }
func Int(key string, value int) Field         { return intField{key, value} }
func Int64(key string, value int64) Field     { return int64Field{key, value} }
func Float64(key string, value float64) Field { return float64Field{key, value} }
func Error(key string, err error) Field       { return errorField{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// Level filters what a text logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// NewTextLogger writes "LEVEL msg key=value ..." lines to w. Safe for
// concurrent use by multiple batch workers.
func NewTextLogger(w io.Writer, min Level) Logger {
	return &textLogger{w: w, min: min, mu: &sync.Mutex{}}
}

type textLogger struct {
	w     io.Writer
	min   Level
	bound []Field
	mu    *sync.Mutex
}

func (l *textLogger) Debug(msg string, fields ...Field) { l.emit(LevelDebug, "DEBUG", msg, fields) }
func (l *textLogger) Info(msg string, fields ...Field)  { l.emit(LevelInfo, "INFO", msg, fields) }
func (l *textLogger) Warn(msg string, fields ...Field)  { l.emit(LevelWarn, "WARN", msg, fields) }
func (l *textLogger) Error(msg string, fields ...Field) { l.emit(LevelError, "ERROR", msg, fields) }

func (l *textLogger) With(fields ...Field) Logger {
	bound := make([]Field, 0, len(l.bound)+len(fields))
	bound = append(bound, l.bound...)
	bound = append(bound, fields...)
	return &textLogger{w: l.w, min: l.min, bound: bound, mu: l.mu}
}

func (l *textLogger) emit(lv Level, tag, msg string, fields []Field) {
	if lv < l.min {
		return
	}
	kv := make(map[string]interface{}, len(l.bound)+len(fields))
	for _, f := range l.bound {
		kv[f.Key()] = f.Value()
	}
	for _, f := range fields {
		kv[f.Key()] = f.Value()
	}
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s %s", tag, msg)
	for _, k := range keys {
		fmt.Fprintf(l.w, " %s=%v", k, kv[k])
	}
	fmt.Fprintln(l.w)
}

// Standard metric names emitted by the pipeline.
const (
	MetricParseTime     = "censor.parse.duration"
	MetricClassifyTime  = "censor.classify.duration"
	MetricRedactTime    = "censor.redact.duration"
	MetricWriteTime     = "censor.write.duration"
	MetricOpsRemoved    = "censor.redact.ops_removed"
	MetricDocsProcessed = "censor.batch.processed"
	MetricDocsFailed    = "censor.batch.failed"
)

package logs

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
	DEBUG Level = "DEBUG"
)

// levelPriority defines the priority of each log level
// higher value= more severe
var levelPriority = map[Level]int{
	DEBUG: 1,
	INFO:  2,
	WARN:  3,
	ERROR: 4,
}

var zerologLevels = map[Level]zerolog.Level{
	DEBUG: zerolog.DebugLevel,
	INFO:  zerolog.InfoLevel,
	WARN:  zerolog.WarnLevel,
	ERROR: zerolog.ErrorLevel,
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return INFO, nil
	case "debug":
		return DEBUG, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return "", fmt.Errorf("invalid log level %q", s)
	}
}

type Entry struct {
	TimeStamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// ring keeps the most recent entries in memory. It is shared by a logger
// and every child created through WithComponent.
type ring struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int
}

// Logger writes structured lines through zerolog and keeps the last
// maxSize entries for inspection.
type Logger struct {
	ring      *ring
	level     Level
	zl        zerolog.Logger
	component string
	// fields are the pairs added through With, repeated on ring entries.
	fields []any
	closer io.Closer
}

// level: minimum log level to record(e.g., INFO, WARN, ERROR,DEBUG)
//
//maxsize:maximum number of log entries kept in memory
//
// Lines are only kept in memory; use New for a logger with an output sink.
func NewLogger(maxSize int, level Level) *Logger {
	return newLogger(maxSize, level, io.Discard)
}

func newLogger(maxSize int, level Level, w io.Writer) *Logger {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Logger{
		ring: &ring{
			entries: make([]Entry, 0, maxSize),
			maxSize: maxSize,
		},
		level: level,
		zl:    zerolog.New(w).Level(zerologLevels[level]).With().Timestamp().Logger(),
	}
}

var initOnce sync.Once

// New builds the process logger from cfg. The zerolog globals are set the
// first time New runs and never again.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	initOnce.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
	})

	var (
		w      io.Writer
		closer io.Closer
	)
	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	case "discard":
		w = io.Discard
	case "syslog":
		sw, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "ceph-check")
		if err != nil {
			return nil, fmt.Errorf("open syslog: %w", err)
		}
		w, closer = zerolog.SyslogLevelWriter(sw), sw
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	l := newLogger(cfg.RingSize, level, w)
	l.closer = closer
	return l, nil
}

// Close releases the log file, if New opened one.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// WithComponent returns a child logger tagging every line with component.
// The child shares the parent's in-memory entries.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		ring:      l.ring,
		level:     l.level,
		zl:        l.zl.With().Str("component", component).Logger(),
		component: component,
		fields:    l.fields,
	}
}

// With returns a child logger carrying the given key/value pairs on every
// line written to the sink.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{
		ring:      l.ring,
		level:     l.level,
		zl:        l.zl.With().Fields(kv).Logger(),
		component: l.component,
		fields:    append(l.fields[:len(l.fields):len(l.fields)], kv...),
	}
}

// log is the internal logging function
// it applies level filtering and ring buffer behavior
func (l *Logger) log(level Level, msg string, kv []any) {
	//filter logds below the current level
	if levelPriority[level] < levelPriority[l.level] {
		return
	}

	l.zl.WithLevel(zerologLevels[level]).Fields(kv).Msg(msg)

	r := l.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.maxSize {
		//remove oldest entry(ring behavior	)
		r.entries = r.entries[1:]
	}

	r.entries = append(r.entries, Entry{
		TimeStamp: time.Now(),
		Level:     level,
		Component: l.component,
		Message:   msg,
		Fields:    fieldMap(append(l.fields[:len(l.fields):len(l.fields)], kv...)),
	})
}

func fieldMap(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out[key] = kv[i+1]
	}
	return out
}

func (l *Logger) Debug(msg string, kv ...any) {
	l.log(DEBUG, msg, kv)
}

func (l *Logger) Info(msg string, kv ...any) {
	l.log(INFO, msg, kv)
}

func (l *Logger) Warn(msg string, kv ...any) {
	l.log(WARN, msg, kv)
}

func (l *Logger) Error(msg string, kv ...any) {
	l.log(ERROR, msg, kv)
}

func (l *Logger) GetLast(n int) []Entry {
	r := l.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > len(r.entries) {
		out := make([]Entry, len(r.entries))
		copy(out, r.entries)
		return out
	}

	start := len(r.entries) - n
	out := make([]Entry, n)
	copy(out, r.entries[start:])
	return out
}

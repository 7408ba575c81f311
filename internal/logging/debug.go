package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger provides topic-based debug logging with minimal overhead when disabled
type Logger struct {
	topic string
}

var (
	mu            sync.RWMutex
	enabledTopics = make(map[string]bool)
)

func init() {
	// DEBUG_TOPICS=ledger,sma,depth or DEBUG_TOPICS=all
	if topics := os.Getenv("DEBUG_TOPICS"); topics != "" {
		SetTopics(topics)
		Configure(os.Stderr, "debug", "text")
	}
}

// SetTopics replaces the enabled topic set. "all" enables everything.
func SetTopics(topics string) {
	parsed := make(map[string]bool)
	for _, topic := range strings.Split(topics, ",") {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		if topic == "all" {
			topic = "*"
		}
		parsed[topic] = true
	}

	mu.Lock()
	enabledTopics = parsed
	mu.Unlock()
}

// Configure sets slog's default logger. Unknown levels fall back to info,
// unknown formats to text.
func Configure(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new topic-specific logger
// Usage: var depthLog = logging.New("depth")
func New(topic string) *Logger {
	return &Logger{topic: topic}
}

// Debug logs a debug message if this topic is enabled
func (l *Logger) Debug(msg string, args ...any) {
	if !l.Enabled() {
		return
	}
	slog.Debug(msg, l.withTopic(args)...)
}

// Info logs an info message if this topic is enabled
func (l *Logger) Info(msg string, args ...any) {
	if !l.Enabled() {
		return
	}
	slog.Info(msg, l.withTopic(args)...)
}

// Warn logs a warning message if this topic is enabled
func (l *Logger) Warn(msg string, args ...any) {
	if !l.Enabled() {
		return
	}
	slog.Warn(msg, l.withTopic(args)...)
}

// Enabled returns true if this logger is enabled.
// Useful for expensive computations: if log.Enabled() { ... }
func (l *Logger) Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabledTopics["*"] || enabledTopics[l.topic]
}

func (l *Logger) withTopic(args []any) []any {
	return append([]any{"topic", l.topic}, args...)
}

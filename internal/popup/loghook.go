package popup

import (
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// LogHook is a logrus hook that forwards formatted entries to the popup status bar.
type LogHook struct {
	ch        chan string
	formatter log.Formatter
	mu        sync.Mutex
	levels    []log.Level
}

// NewLogHook creates a hook with a buffered channel of bufSize lines. With no levels
// given it fires for info and above.
func NewLogHook(bufSize int, levels ...log.Level) *LogHook {
	if len(levels) == 0 {
		levels = []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel, log.InfoLevel}
	}
	return &LogHook{
		ch:     make(chan string, bufSize),
		levels: levels,
	}
}

// SetFormatter sets the formatter used for each line. Without one, lines are
// rendered as "level: message".
func (h *LogHook) SetFormatter(f log.Formatter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.formatter = f
}

// Levels returns the log levels this hook should fire on.
func (h *LogHook) Levels() []log.Level {
	return h.levels
}

// Fire formats entry and queues it, dropping the oldest line when the buffer is full.
func (h *LogHook) Fire(entry *log.Entry) error {
	h.mu.Lock()
	f := h.formatter
	h.mu.Unlock()

	line := fmt.Sprintf("%s: %s", entry.Level, entry.Message)
	if errField, ok := entry.Data[log.ErrorKey]; ok {
		line += fmt.Sprintf(" (%v)", errField)
	}
	if f != nil {
		if b, err := f.Format(entry); err == nil {
			line = strings.TrimRight(string(b), "\n\r")
		}
	}

	select {
	case h.ch <- line:
	default:
		select {
		case <-h.ch:
		default:
		}
		select {
		case h.ch <- line:
		default:
		}
	}
	return nil
}

// Chan returns the channel to read log lines from.
func (h *LogHook) Chan() <-chan string {
	return h.ch
}

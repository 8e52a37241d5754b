package crouton

import (
	"log/slog"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	logifaceslog "github.com/joeycumines/logiface-slog"
)

// log is the package-wide structured logger. It defaults to a disabled
// (no-op cost) logger; SetLogger installs a real one, typically built from a
// slog.Handler via NewSlogLogger. Two events are logged through it at Debug
// level: a Scheduler's submission-rate overload and a Select awaited with
// nothing enabled — through the logiface dependency rather than a bespoke
// Logger type, see SPEC_FULL.md §10.
var (
	logMu sync.RWMutex
	log   = logiface.New[*logifaceslog.Event]()
)

// SetLogger installs l as the package-wide structured logger.
func SetLogger(l *logiface.Logger[*logifaceslog.Event]) {
	logMu.Lock()
	defer logMu.Unlock()
	log = l
}

func currentLogger() *logiface.Logger[*logifaceslog.Event] {
	logMu.RLock()
	defer logMu.RUnlock()
	return log
}

// NewSlogLogger builds a logiface logger writing through the standard
// library's log/slog, via the logiface-slog adapter.
func NewSlogLogger(handler slog.Handler) *logiface.Logger[*logifaceslog.Event] {
	return logiface.New[*logifaceslog.Event](logifaceslog.NewLogger(handler))
}

// NewDefaultSlogLogger is a convenience for a JSON logger writing to stderr
// at Info level, matching the teacher's default-logger convenience
// constructors.
func NewDefaultSlogLogger() *logiface.Logger[*logifaceslog.Event] {
	return NewSlogLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func logDebug(msg string, fields func(b *logiface.Builder[*logifaceslog.Event])) {
	l := currentLogger()
	b := l.Debug()
	if fields != nil {
		fields(b)
	}
	b.Log(msg)
}

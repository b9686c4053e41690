package dispatch

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	"github.com/concurrence/concurrence/tasklet"
)

// stumpyLogger adapts a logiface.Logger[*stumpy.Event] to tasklet.Logger,
// grounded on the teacher's eventloop.Logger seam (eventloop/logging.go):
// the scheduler only needs four leveled methods, and any structured backend
// can be plugged in behind them.
type stumpyLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

// NewLogger constructs the production tasklet.Logger: JSON lines to w (or
// os.Stderr if nil), via logiface + stumpy — SPEC_FULL.md §4.9.
func NewLogger(w *os.File) tasklet.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := stumpy.L.New(
		stumpy.L.WithWriter(logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
			_, err := w.Write(append(e.Bytes(), '\n'))
			return err
		})),
	)
	return &stumpyLogger{l: l}
}

func fields(b *logiface.Builder[*stumpy.Event], kv []any) *logiface.Builder[*stumpy.Event] {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		b = b.Any(key, kv[i+1])
	}
	return b
}

func (s *stumpyLogger) Debug(msg string, kv ...any) { fields(s.l.Debug(), kv).Log(msg) }
func (s *stumpyLogger) Info(msg string, kv ...any)  { fields(s.l.Info(), kv).Log(msg) }
func (s *stumpyLogger) Warn(msg string, kv ...any)  { fields(s.l.Warning(), kv).Log(msg) }
func (s *stumpyLogger) Error(msg string, kv ...any) { fields(s.l.Err(), kv).Log(msg) }

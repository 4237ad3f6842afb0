package canclient

import (
	"context"
	"log/slog"
	"time"
)

// LogOption is a bitmask for selecting which operations to log.
type LogOption uint8

const (
	LogNone LogOption = 0
	LogRead LogOption = 1 << iota
	LogWrite
	LogAll = LogRead | LogWrite
)

// NewLoggedTransport wraps a Transport and logs the selected operations at
// the given level. When filter is non-nil only matching frames are logged;
// errors are always logged at error level.
func NewLoggedTransport(inner Transport, logger *slog.Logger, level slog.Level, opts LogOption, filter FrameFilter) Transport {
	return &loggedTransport{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
		filter: filter,
	}
}

type loggedTransport struct {
	inner  Transport
	logger *slog.Logger
	level  slog.Level
	opts   LogOption
	filter FrameFilter
}

func (l *loggedTransport) Kind() Kind   { return l.inner.Kind() }
func (l *loggedTransport) Info() string { return l.inner.Info() }

func (l *loggedTransport) frameAttrs(f Frame) []any {
	return []any{
		"transport", l.inner.Kind().String(),
		"id", f.ID(),
		"extended", f.IsExtended(),
		"fd", f.IsFD(),
		"len", f.Len(),
		"frame", f.String(),
	}
}

func (l *loggedTransport) Send(frame Frame) error {
	if l.opts&LogWrite != 0 && (l.filter == nil || l.filter(frame)) {
		l.logger.Log(context.Background(), l.level, "canclient send", l.frameAttrs(frame)...)
	}
	err := l.inner.Send(frame)
	if l.opts&LogWrite != 0 && err != nil {
		l.logger.Log(context.Background(), slog.LevelError, "canclient send error",
			"transport", l.inner.Kind().String(),
			"id", frame.ID(),
			"error", err,
		)
	}
	return err
}

func (l *loggedTransport) Receive(timeout time.Duration) (Frame, bool, error) {
	f, ok, err := l.inner.Receive(timeout)
	if l.opts&LogRead == 0 {
		return f, ok, err
	}
	switch {
	case err != nil:
		l.logger.Log(context.Background(), slog.LevelError, "canclient receive error",
			"transport", l.inner.Kind().String(),
			"error", err,
		)
	case ok && (l.filter == nil || l.filter(f)):
		l.logger.Log(context.Background(), l.level, "canclient receive", l.frameAttrs(f)...)
	}
	return f, ok, err
}

// Close forwards to the inner Transport without logging.
func (l *loggedTransport) Close() error {
	return l.inner.Close()
}

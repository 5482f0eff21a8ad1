// Package sink consumes tool events on the receiving side of the relay.
package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"remarkable-relay/internal/tool"
)

// Sink receives tool events in the order they were derived.
type Sink interface {
	Handle(ctx context.Context, ev tool.Event) error
	Close() error
}

// Log reports every event through slog.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Log{logger: logger}
}

func (l *Log) Handle(ctx context.Context, ev tool.Event) error {
	l.logger.LogAttrs(ctx, slog.LevelInfo, "tool event", slog.String("event", ev.String()))
	return nil
}

func (l *Log) Close() error { return nil }

// Print writes one line per event.
type Print struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrint(w io.Writer) *Print {
	return &Print{w: w}
}

func (p *Print) Handle(_ context.Context, ev tool.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.w, ev.String())
	return err
}

func (p *Print) Close() error { return nil }

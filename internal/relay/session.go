// Package relay connects a local input device to remote consumers over TCP.
//
// The server side runs one Session per accepted connection. Each session
// opens its own handle on the device, reconstructs tool events from it and
// writes them to the peer as length-prefixed frames. The client side reads
// those frames with Receive and hands the events to a sink.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"remarkable-relay/internal/tool"
	"remarkable-relay/internal/wire"
)

// Opener opens a fresh handle on the input device.
type Opener func() (io.ReadCloser, error)

// Session relays one device handle to one connection.
type Session struct {
	ID     uint64
	conn   net.Conn
	open   Opener
	logger *slog.Logger
}

func NewSession(id uint64, conn net.Conn, open Opener, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		ID:     id,
		conn:   conn,
		open:   open,
		logger: logger.With("session", id, "remote", conn.RemoteAddr().String()),
	}
}

// Run streams events until the device ends, the peer goes away or ctx is
// cancelled; all three return nil. The connection is always closed on
// return. Errors from the device, the decoder or the connection are
// returned wrapped.
func (s *Session) Run(ctx context.Context) error {
	dev, err := s.open()
	if err != nil {
		s.conn.Close()
		return fmt.Errorf("open device: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	closeAll := sync.OnceFunc(func() {
		dev.Close()
		s.conn.Close()
	})
	defer closeAll()
	stop := context.AfterFunc(ctx, closeAll)
	defer stop()

	// The peer never sends anything; a read only returns when it hangs up.
	go func() {
		_, _ = io.Copy(io.Discard, s.conn)
		s.logger.Debug("peer closed connection")
		cancel()
	}()

	src := tool.NewSource(dev, s.logger)
	enc := wire.NewEncoder(s.conn)
	var sent int
	for {
		ev, err := src.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				s.logger.Info("session ended", "events", sent)
				return nil
			}
			return fmt.Errorf("read device: %w", err)
		}
		if err := enc.Encode(ev); err != nil {
			if ctx.Err() != nil || IsExpectedClose(err) {
				s.logger.Info("session ended", "events", sent)
				return nil
			}
			return fmt.Errorf("send event: %w", err)
		}
		sent++
		s.logger.Debug("sent", "event", ev.String())
	}
}

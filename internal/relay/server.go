package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// Server accepts connections and runs a Session for each. Sessions are
// independent: one failing never affects the others or the accept loop.
type Server struct {
	open   Opener
	logger *slog.Logger

	sessions atomic.Uint64
	wg       sync.WaitGroup
}

func NewServer(open Opener, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{open: open, logger: logger}
}

// Sessions returns how many sessions have been started.
func (s *Server) Sessions() uint64 { return s.sessions.Load() }

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln,
// waits for running sessions to finish and returns nil. Any other accept
// failure cancels the sessions and is returned.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		id := s.sessions.Add(1)
		sess := NewSession(id, conn, s.open, s.logger)
		sess.logger.Info("session started")

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := sess.Run(ctx); err != nil {
				if IsExpectedClose(err) {
					sess.logger.Info("session closed", "err", err)
				} else {
					sess.logger.Error("session failed", "err", err)
				}
			}
		}()
	}
}

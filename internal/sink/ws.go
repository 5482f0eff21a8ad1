package sink

// WebSocket client for the co-drawing server:
// - TCP keepalive on the dialer
// - ping ticker
// - pong watchdog (read deadline)
// - background reader so control frames get processed
//
// Server messages are read and discarded.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 5 * time.Second

// WSOptions tunes the keepalive of a WSConn.
type WSOptions struct {
	PingEvery time.Duration
	PongWait  time.Duration
	Logger    *slog.Logger
}

func (o WSOptions) withDefaults() WSOptions {
	if o.PingEvery <= 0 {
		o.PingEvery = 2 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 8 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// WSConn is a WebSocket connection that writes JSON messages. Writes are
// safe for concurrent use. A failed read or ping is reported once on Err.
type WSConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	errC      chan error
}

// DialWS connects to wsURL and starts the reader and ping goroutines.
func DialWS(ctx context.Context, wsURL string, opts WSOptions) (*WSConn, error) {
	opts = opts.withDefaults()
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}

	d := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		NetDialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 15 * time.Second,
		}).DialContext,
	}

	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}

	w := &WSConn{
		conn:   conn,
		logger: opts.Logger.With("ws", u.Redacted()),
		done:   make(chan struct{}),
		errC:   make(chan error, 1),
	}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	go w.readLoop()
	go w.pingLoop(opts.PingEvery)
	return w, nil
}

// Close sends a close frame and closes the connection.
func (w *WSConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
		w.mu.Unlock()
		err = w.conn.Close()
	})
	return err
}

// Err reports the first connection failure.
func (w *WSConn) Err() <-chan error { return w.errC }

func (w *WSConn) sendErr(err error) {
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.errC <- err:
		w.logger.Warn("websocket failed", "err", err)
	default:
	}
}

func (w *WSConn) readLoop() {
	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			w.sendErr(err)
			return
		}
	}
}

func (w *WSConn) pingLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-t.C:
			err := w.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteWait))
			if err != nil {
				w.sendErr(err)
				return
			}
		}
	}
}

// WriteJSON sends v as one text message.
func (w *WSConn) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteMessage(websocket.TextMessage, b)
}

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"remarkable-relay/internal/sink"
	"remarkable-relay/internal/wire"
)

// Dial connects to a relay server.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// Receive decodes frames from conn in order and hands each event to dst.
// It returns nil when the server closes the stream cleanly and ctx.Err()
// when ctx is cancelled. An oversized or malformed frame, a read failure or
// a sink failure ends the loop with that error. conn is closed on return.
func Receive(ctx context.Context, conn io.ReadCloser, maxPayload int, dst sink.Sink) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	dec := wire.NewDecoder(conn, maxPayload)
	for {
		ev, err := dec.Decode()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		if err := dst.Handle(ctx, ev); err != nil {
			return fmt.Errorf("sink: %w", err)
		}
	}
}

package relay

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remarkable-relay/internal/evdev"
	"remarkable-relay/internal/input"
	"remarkable-relay/internal/tool"
	"remarkable-relay/internal/wire"
)

func encodeEvents(events ...input.Event) []byte {
	var buf bytes.Buffer
	for _, ev := range events {
		b := evdev.Encode(input.Record(ev))
		buf.Write(b[:])
	}
	return buf.Bytes()
}

var penStroke = encodeEvents(
	input.ToolPresence{Kind: input.Pen, Present: true}, input.Sync{},
	input.Axis{Axis: input.X, Value: 100}, input.Axis{Axis: input.Y, Value: 200},
	input.Axis{Axis: input.Distance, Value: 40}, input.Sync{},
	input.Axis{Axis: input.Pressure, Value: 1200}, input.Axis{Axis: input.Distance, Value: 3}, input.Sync{},
	input.ToolPresence{Kind: input.Pen, Present: false}, input.Sync{},
)

var penStrokeEvents = []tool.Event{
	tool.Update(tool.Tool{Kind: input.Pen, Point: tool.Point{X: 100, Y: 200}, Height: tool.Distance(40)}),
	tool.Update(tool.Tool{Kind: input.Pen, Point: tool.Point{X: 100, Y: 200}, Height: tool.Touching(1200)}),
	tool.Removed(),
}

func staticDevice(data []byte) Opener {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

type collectSink struct {
	mu     sync.Mutex
	events []tool.Event
	err    error
}

func (c *collectSink) Handle(_ context.Context, ev tool.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *collectSink) Close() error { return nil }

func (c *collectSink) Events() []tool.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tool.Event(nil), c.events...)
}

func startServer(t *testing.T, open Opener) (*Server, string, context.CancelFunc) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(open, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv, ln.Addr().String(), cancel
}

func receive(addr string) ([]tool.Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	var got collectSink
	err = Receive(ctx, conn, wire.DefaultMaxPayload, &got)
	return got.Events(), err
}

func receiveAll(t *testing.T, addr string) []tool.Event {
	t.Helper()
	events, err := receive(addr)
	require.NoError(t, err)
	return events
}

func TestServerRelaysEvents(t *testing.T) {
	srv, addr, _ := startServer(t, staticDevice(penStroke))

	assert.Equal(t, penStrokeEvents, receiveAll(t, addr))
	assert.Equal(t, uint64(1), srv.Sessions())
}

func TestServerSessionsAreIndependent(t *testing.T) {
	_, addr, _ := startServer(t, staticDevice(penStroke))

	var wg sync.WaitGroup
	results := make([][]tool.Event, 3)
	errs := make([]error, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = receive(addr)
		}()
	}
	wg.Wait()

	for i, got := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, penStrokeEvents, got)
	}
}

func TestServerSurvivesFailingSession(t *testing.T) {
	var calls int
	var mu sync.Mutex
	open := func() (io.ReadCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, errors.New("device busy")
		}
		return io.NopCloser(bytes.NewReader(penStroke)), nil
	}
	srv, addr, _ := startServer(t, open)

	assert.Empty(t, receiveAll(t, addr))
	assert.Equal(t, penStrokeEvents, receiveAll(t, addr))
	assert.Equal(t, uint64(2), srv.Sessions())
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(staticDevice(nil), nil).Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

// pipeDevice is a device whose records are written by the test.
func pipeDevice() (Opener, *io.PipeWriter) {
	pr, pw := io.Pipe()
	return func() (io.ReadCloser, error) { return pr, nil }, pw
}

func runSession(ctx context.Context, conn net.Conn, open Opener) <-chan error {
	done := make(chan error, 1)
	go func() { done <- NewSession(1, conn, open, nil).Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not return")
		return nil
	}
}

func TestSessionEndsWhenPeerCloses(t *testing.T) {
	open, pw := pipeDevice()
	server, client := net.Pipe()
	done := runSession(context.Background(), server, open)

	go func() {
		_, _ = pw.Write(encodeEvents(
			input.ToolPresence{Kind: input.Rubber, Present: true},
			input.Axis{Axis: input.X, Value: 5}, input.Axis{Axis: input.Y, Value: 6}, input.Sync{},
		))
	}()

	ev, err := wire.NewDecoder(client, 0).Decode()
	require.NoError(t, err)
	assert.Equal(t, tool.Update(tool.Tool{Kind: input.Rubber, Point: tool.Point{X: 5, Y: 6}, Height: tool.Missing()}), ev)

	require.NoError(t, client.Close())
	assert.NoError(t, waitRun(t, done))

	// The session released its device handle.
	_, err = pw.Write(encodeEvents(input.Sync{}))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestSessionEndsOnCancel(t *testing.T) {
	open, _ := pipeDevice()
	server, client := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := runSession(ctx, server, open)
	cancel()
	assert.NoError(t, waitRun(t, done))
}

func TestSessionDecodeFailure(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	data := encodeEvents(input.ToolPresence{Kind: input.Pen, Present: true})
	bad := evdev.Encode(evdev.Record{Type: evdev.EvKey, Code: 999, Value: 1})
	data = append(data, bad[:]...)

	err := waitRun(t, runSession(context.Background(), server, staticDevice(data)))
	require.Error(t, err)
	assert.ErrorIs(t, err, input.ErrUnknownToolCode)
	assert.False(t, IsExpectedClose(err))
}

func TestSessionOpenFailure(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	open := func() (io.ReadCloser, error) { return nil, os.ErrPermission }
	err := waitRun(t, runSession(context.Background(), server, open))
	assert.ErrorIs(t, err, os.ErrPermission)

	// The connection was closed.
	_, err = client.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestReceiveOversizedFrame(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		var header [wire.HeaderSize]byte
		binary.BigEndian.PutUint64(header[:], 2000)
		_, _ = server.Write(header[:])
	}()

	var got collectSink
	err := Receive(context.Background(), client, wire.DefaultMaxPayload, &got)
	require.ErrorIs(t, err, wire.ErrFrameTooLarge)

	var tooLarge *wire.FrameTooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, uint64(2000), tooLarge.Length)
	assert.Empty(t, got.Events())
}

func TestReceiveMalformedPayload(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() { _ = wire.WriteFrame(server, []byte{0xff}) }()

	err := Receive(context.Background(), client, 0, &collectSink{})
	assert.ErrorIs(t, err, wire.ErrMalformedPayload)
}

func TestReceiveSinkFailure(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() { _ = wire.NewEncoder(server).Encode(tool.Removed()) }()

	err := Receive(context.Background(), client, 0, &collectSink{err: errors.New("full")})
	assert.EqualError(t, err, "sink: full")
}

func TestReceiveCancel(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Receive(ctx, client, 0, &collectSink{}) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Receive did not return")
	}
}

func TestIsExpectedClose(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{io.EOF, true},
		{fmt.Errorf("read: %w", io.EOF), true},
		{net.ErrClosed, true},
		{io.ErrClosedPipe, true},
		{&net.OpError{Op: "write", Err: os.NewSyscallError("write", syscall.EPIPE)}, true},
		{fmt.Errorf("send event: %w", syscall.ECONNRESET), true},
		{syscall.ECONNREFUSED, false},
		{io.ErrUnexpectedEOF, false},
		{wire.ErrFrameTooLarge, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsExpectedClose(tt.err), "%v", tt.err)
	}
}

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"remarkable-relay/internal/tool"
)

// HeaderSize is the size of the length prefix.
const HeaderSize = 8

// DefaultMaxPayload is the receive buffer size. A tool event encodes to
// well under 64 bytes.
const DefaultMaxPayload = 1024

// ErrFrameTooLarge is matched by every *FrameTooLargeError.
var ErrFrameTooLarge = errors.New("frame exceeds receive buffer")

// FrameTooLargeError is returned when a header declares more payload than
// the receive buffer holds. Nothing past the header has been read.
type FrameTooLargeError struct {
	Length uint64
	Max    int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("header exceeded buffer size (%d): %d", e.Max, e.Length)
}

func (e *FrameTooLargeError) Unwrap() error { return ErrFrameTooLarge }

// WriteFrame writes the length prefix and payload. Both go out in one
// vectored write where w supports it (*net.TCPConn).
func WriteFrame(w io.Writer, payload []byte) error {
	var header [HeaderSize]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(payload)))
	bufs := net.Buffers{header[:], payload}
	if _, err := bufs.WriteTo(w); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame into buf and returns the payload, which aliases
// buf. It returns io.EOF if r ends before the first header byte.
func ReadFrame(r io.Reader, buf []byte) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	length := binary.BigEndian.Uint64(header[:])
	if length > uint64(len(buf)) {
		return nil, &FrameTooLargeError{Length: length, Max: len(buf)}
	}
	payload := buf[:length]
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}

// Encoder writes tool events as frames. It is safe for concurrent use;
// frames from different callers never interleave.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes ev as one frame.
func (e *Encoder) Encode(ev tool.Event) error {
	payload, err := Marshal(ev)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return WriteFrame(e.w, payload)
}

// Decoder reads tool events from frames.
type Decoder struct {
	r   io.Reader
	buf []byte
}

// NewDecoder returns a Decoder with a receive buffer of maxPayload bytes.
// Zero or negative means DefaultMaxPayload.
func NewDecoder(r io.Reader, maxPayload int) *Decoder {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Decoder{r: r, buf: make([]byte, maxPayload)}
}

// Decode reads the next event. Any error leaves the stream unusable.
func (d *Decoder) Decode() (tool.Event, error) {
	payload, err := ReadFrame(d.r, d.buf)
	if err != nil {
		return tool.Event{}, err
	}
	return Unmarshal(payload)
}

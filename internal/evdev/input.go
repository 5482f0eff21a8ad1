// Package evdev reads Linux input_event records from a device node.
//
// Records use the 32-bit timeval layout (16 bytes) emitted by the reMarkable
// digitizer:
//
//	[ 0 - 4 ] [ 4 - 8 ] [ 8 - 10 ] [ 10 - 12 ] [ 12 - 16 ]
//	  secs      usecs      type        code        value
//
// All fields are little-endian.
package evdev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Event types
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvAbs = 0x03
)

// Keys (stylus tools)
const (
	BtnToolPen    = 0x140
	BtnToolRubber = 0x141
	BtnTouch      = 0x14A
	BtnStylus     = 0x14B
	BtnStylus2    = 0x14C
)

// ABS axes
const (
	AbsX        = 0x00
	AbsY        = 0x01
	AbsPressure = 0x18
	AbsDistance = 0x19
	AbsTiltX    = 0x1A
	AbsTiltY    = 0x1B
)

// RecordSize is the size of one input_event on the wire.
const RecordSize = 16

// ErrShortRecord is returned when fewer than RecordSize bytes are available
// for a record. The stream is treated as ended or corrupt.
var ErrShortRecord = errors.New("evdev: short input_event record")

// Record is one decoded input_event.
type Record struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value uint32
}

func (r Record) String() string {
	return fmt.Sprintf("type=%#x code=%#x value=%#x", r.Type, r.Code, r.Value)
}

// Decode decodes the first RecordSize bytes of b.
func Decode(b []byte) (Record, error) {
	if len(b) < RecordSize {
		return Record{}, fmt.Errorf("%w: got %d bytes", ErrShortRecord, len(b))
	}
	secs := binary.LittleEndian.Uint32(b[0:4])
	usecs := binary.LittleEndian.Uint32(b[4:8])
	return Record{
		Time:  time.Unix(int64(secs), int64(usecs)*int64(time.Microsecond)),
		Type:  binary.LittleEndian.Uint16(b[8:10]),
		Code:  binary.LittleEndian.Uint16(b[10:12]),
		Value: binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}

// Encode is the inverse of Decode. Sub-microsecond precision is dropped.
func Encode(r Record) [RecordSize]byte {
	var b [RecordSize]byte
	var secs, usecs uint32
	if !r.Time.IsZero() {
		secs = uint32(r.Time.Unix())
		usecs = uint32(r.Time.Nanosecond() / int(time.Microsecond))
	}
	binary.LittleEndian.PutUint32(b[0:4], secs)
	binary.LittleEndian.PutUint32(b[4:8], usecs)
	binary.LittleEndian.PutUint16(b[8:10], r.Type)
	binary.LittleEndian.PutUint16(b[10:12], r.Code)
	binary.LittleEndian.PutUint32(b[12:16], r.Value)
	return b
}

// Reader reads records from a byte stream.
type Reader struct {
	r   io.Reader
	buf [RecordSize]byte
}

// NewReader returns a Reader that reads records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadRecord blocks until a full record is available. It returns io.EOF when
// the stream ends on a record boundary and ErrShortRecord when it ends inside
// one.
func (r *Reader) ReadRecord() (Record, error) {
	n, err := io.ReadFull(r.r, r.buf[:])
	switch {
	case err == nil:
		return Decode(r.buf[:])
	case errors.Is(err, io.EOF):
		return Record{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Record{}, fmt.Errorf("%w: stream ended after %d bytes", ErrShortRecord, n)
	default:
		return Record{}, err
	}
}

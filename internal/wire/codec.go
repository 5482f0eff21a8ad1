// Package wire is the relay's stream format: each tool event travels as one
// frame, an 8-byte big-endian payload length followed by a CBOR payload.
package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"remarkable-relay/internal/input"
	"remarkable-relay/internal/tool"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): the same event
// always produces the same bytes.
var encMode cbor.EncMode

// decMode rejects anything the encoder would not produce: unknown or
// duplicate keys and indefinite-length items.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

// ErrMalformedPayload is returned for payloads that are not a valid event.
var ErrMalformedPayload = errors.New("malformed event payload")

// Payload layout. Keys are small integers to keep frames short.
//
//	event  = {0: type, ? 1: tool}          type 1 = update, 2 = removed
//	tool   = {0: kind, 1: x, 2: y, ? 3: tilt_x, ? 4: tilt_y, 5: height}
//	height = {0: kind, ? 1: value}         kind 0 = missing, 1 = distance, 2 = touching
type wireEvent struct {
	Type uint8     `cbor:"0,keyasint"`
	Tool *wireTool `cbor:"1,keyasint,omitempty"`
}

type wireTool struct {
	Kind   uint8      `cbor:"0,keyasint"`
	X      uint32     `cbor:"1,keyasint"`
	Y      uint32     `cbor:"2,keyasint"`
	TiltX  *int32     `cbor:"3,keyasint,omitempty"`
	TiltY  *int32     `cbor:"4,keyasint,omitempty"`
	Height wireHeight `cbor:"5,keyasint"`
}

type wireHeight struct {
	Kind  uint8  `cbor:"0,keyasint"`
	Value uint32 `cbor:"1,keyasint,omitempty"`
}

// Marshal encodes ev as a frame payload.
func Marshal(ev tool.Event) ([]byte, error) {
	w := wireEvent{Type: uint8(ev.Kind)}
	switch ev.Kind {
	case tool.KindUpdate:
		t := ev.Tool
		if !t.Kind.Valid() {
			return nil, fmt.Errorf("marshal event: invalid tool kind %d", t.Kind)
		}
		if t.Height.Kind > tool.HeightTouching {
			return nil, fmt.Errorf("marshal event: invalid height kind %d", t.Height.Kind)
		}
		w.Tool = &wireTool{
			Kind:   uint8(t.Kind),
			X:      t.Point.X,
			Y:      t.Point.Y,
			TiltX:  t.TiltX,
			TiltY:  t.TiltY,
			Height: wireHeight{Kind: uint8(t.Height.Kind), Value: t.Height.Value},
		}
	case tool.KindRemoved:
	default:
		return nil, fmt.Errorf("marshal event: invalid event kind %d", ev.Kind)
	}
	return encMode.Marshal(w)
}

// Unmarshal decodes a frame payload. Every failure matches
// ErrMalformedPayload.
func Unmarshal(data []byte) (tool.Event, error) {
	var w wireEvent
	if err := decMode.Unmarshal(data, &w); err != nil {
		return tool.Event{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	switch tool.EventKind(w.Type) {
	case tool.KindRemoved:
		if w.Tool != nil {
			return tool.Event{}, fmt.Errorf("%w: removed event carries a tool", ErrMalformedPayload)
		}
		return tool.Removed(), nil

	case tool.KindUpdate:
		if w.Tool == nil {
			return tool.Event{}, fmt.Errorf("%w: update event without tool", ErrMalformedPayload)
		}
		kind := input.ToolKind(w.Tool.Kind)
		if !kind.Valid() {
			return tool.Event{}, fmt.Errorf("%w: tool kind %d", ErrMalformedPayload, w.Tool.Kind)
		}
		height := tool.Height{Kind: tool.HeightKind(w.Tool.Height.Kind), Value: w.Tool.Height.Value}
		switch height.Kind {
		case tool.HeightMissing:
			if height.Value != 0 {
				return tool.Event{}, fmt.Errorf("%w: missing height with value %d", ErrMalformedPayload, height.Value)
			}
		case tool.HeightDistance, tool.HeightTouching:
		default:
			return tool.Event{}, fmt.Errorf("%w: height kind %d", ErrMalformedPayload, height.Kind)
		}
		return tool.Update(tool.Tool{
			Kind:   kind,
			Point:  tool.Point{X: w.Tool.X, Y: w.Tool.Y},
			TiltX:  w.Tool.TiltX,
			TiltY:  w.Tool.TiltY,
			Height: height,
		}), nil
	}
	return tool.Event{}, fmt.Errorf("%w: event type %d", ErrMalformedPayload, w.Type)
}

// Diagnose renders a payload in CBOR diagnostic notation, for logs.
func Diagnose(data []byte) string {
	s, err := cbor.Diagnose(data)
	if err != nil {
		return fmt.Sprintf("<%x>", data)
	}
	return s
}

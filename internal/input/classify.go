package input

import (
	"errors"
	"fmt"

	"remarkable-relay/internal/evdev"
)

// Classification failures. An UnknownEventError matches exactly one of these
// with errors.Is.
var (
	ErrUnknownToolCode     = errors.New("unknown tool code")
	ErrUnknownToolValue    = errors.New("unknown tool value")
	ErrUnknownMovementCode = errors.New("unknown movement code")
	ErrUnknownType         = errors.New("unknown event type")
)

// UnknownEventError is returned for records the classifier does not
// support. It keeps the record for diagnostics.
type UnknownEventError struct {
	Reason error
	Record evdev.Record
}

func (e *UnknownEventError) Error() string {
	r := e.Record
	switch e.Reason {
	case ErrUnknownToolCode:
		return fmt.Sprintf("unknown tool code `%#x`", r.Code)
	case ErrUnknownToolValue:
		return fmt.Sprintf("unexpected value for tool event, should be 0 or 1, was `%#x`", r.Value)
	case ErrUnknownMovementCode:
		return fmt.Sprintf("unknown movement code `%#x`", r.Code)
	}
	return fmt.Sprintf("unknown type: `%#x`, code: `%#x`, value: `%#x`", r.Type, r.Code, r.Value)
}

func (e *UnknownEventError) Unwrap() error { return e.Reason }

// The digitizer is mounted rotated: the kernel's ABS_X runs along the
// screen's long edge, which is the Y axis of the page.
var axisByCode = map[uint16]AxisKind{
	evdev.AbsX:        Y,
	evdev.AbsY:        X,
	evdev.AbsPressure: Pressure,
	evdev.AbsDistance: Distance,
	evdev.AbsTiltX:    TiltX,
	evdev.AbsTiltY:    TiltY,
}

// Classify maps a record onto an Event. It never guesses: any type, code or
// value outside the supported set is an *UnknownEventError.
func Classify(r evdev.Record) (Event, error) {
	switch r.Type {
	case evdev.EvSyn:
		return Sync{}, nil

	case evdev.EvKey:
		// The code tells which tool, the value whether it appeared or went away.
		kind, ok := ToolKindFromCode(r.Code)
		if !ok {
			return nil, &UnknownEventError{Reason: ErrUnknownToolCode, Record: r}
		}
		switch r.Value {
		case 0:
			return ToolPresence{Kind: kind, Present: false}, nil
		case 1:
			return ToolPresence{Kind: kind, Present: true}, nil
		}
		return nil, &UnknownEventError{Reason: ErrUnknownToolValue, Record: r}

	case evdev.EvAbs:
		axis, ok := axisByCode[r.Code]
		if !ok {
			return nil, &UnknownEventError{Reason: ErrUnknownMovementCode, Record: r}
		}
		return Axis{Axis: axis, Value: r.Value}, nil
	}
	return nil, &UnknownEventError{Reason: ErrUnknownType, Record: r}
}

// Record renders e back into the record Classify maps onto e. Used to
// synthesise device streams.
func Record(e Event) evdev.Record {
	switch e := e.(type) {
	case ToolPresence:
		var v uint32
		if e.Present {
			v = 1
		}
		return evdev.Record{Type: evdev.EvKey, Code: e.Kind.Code(), Value: v}
	case Axis:
		for code, axis := range axisByCode {
			if axis == e.Axis {
				return evdev.Record{Type: evdev.EvAbs, Code: code, Value: e.Value}
			}
		}
	}
	return evdev.Record{Type: evdev.EvSyn}
}

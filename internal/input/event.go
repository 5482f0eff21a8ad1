// Package input classifies raw input_event records into the small set of
// low-level events the pen reconstruction understands.
package input

import (
	"fmt"

	"remarkable-relay/internal/evdev"
)

// ToolKind is the physical implement reported by a BTN_TOOL_* key.
type ToolKind uint8

const (
	Pen ToolKind = iota
	Rubber
	Touch
	Stylus
	Stylus2
)

// ToolKindFromCode maps an EV_KEY code to a tool. ok is false for codes
// that are not tools.
func ToolKindFromCode(code uint16) (kind ToolKind, ok bool) {
	switch code {
	case evdev.BtnToolPen:
		return Pen, true
	case evdev.BtnToolRubber:
		return Rubber, true
	case evdev.BtnTouch:
		return Touch, true
	case evdev.BtnStylus:
		return Stylus, true
	case evdev.BtnStylus2:
		return Stylus2, true
	}
	return 0, false
}

// Code is the inverse of ToolKindFromCode.
func (k ToolKind) Code() uint16 {
	switch k {
	case Pen:
		return evdev.BtnToolPen
	case Rubber:
		return evdev.BtnToolRubber
	case Touch:
		return evdev.BtnTouch
	case Stylus:
		return evdev.BtnStylus
	case Stylus2:
		return evdev.BtnStylus2
	}
	return 0
}

// Valid reports whether k is one of the known tools.
func (k ToolKind) Valid() bool { return k <= Stylus2 }

func (k ToolKind) String() string {
	switch k {
	case Pen:
		return "Pen"
	case Rubber:
		return "Rubber"
	case Touch:
		return "Touch"
	case Stylus:
		return "Stylus"
	case Stylus2:
		return "Stylus2"
	}
	return fmt.Sprintf("ToolKind(%d)", uint8(k))
}

// AxisKind is one of the ABS axes reported by the digitizer.
type AxisKind uint8

const (
	X AxisKind = iota
	Y
	TiltX
	TiltY
	Pressure
	Distance
)

func (a AxisKind) String() string {
	switch a {
	case X:
		return "X"
	case Y:
		return "Y"
	case TiltX:
		return "TiltX"
	case TiltY:
		return "TiltY"
	case Pressure:
		return "Pressure"
	case Distance:
		return "Distance"
	}
	return fmt.Sprintf("AxisKind(%d)", uint8(a))
}

// Signed reports whether the axis value is a signed quantity.
func (a AxisKind) Signed() bool { return a == TiltX || a == TiltY }

// Event is a classified low-level event: Sync, ToolPresence or Axis.
type Event interface {
	isEvent()
	String() string
}

// Sync closes one atomic sample: every Axis since the previous Sync belongs
// to it.
type Sync struct{}

// ToolPresence reports a tool entering (Present) or leaving range.
type ToolPresence struct {
	Kind    ToolKind
	Present bool
}

// Axis is one axis sample. Value holds the raw 32 bits; use Int for tilt.
type Axis struct {
	Axis  AxisKind
	Value uint32
}

// Int returns the value reinterpreted as signed.
func (a Axis) Int() int32 { return int32(a.Value) }

func (Sync) isEvent()         {}
func (ToolPresence) isEvent() {}
func (Axis) isEvent()         {}

func (Sync) String() string { return "Sync" }

func (p ToolPresence) String() string {
	if p.Present {
		return fmt.Sprintf("ToolAdded(%s)", p.Kind)
	}
	return fmt.Sprintf("ToolRemoved(%s)", p.Kind)
}

func (a Axis) String() string {
	if a.Axis.Signed() {
		return fmt.Sprintf("%s(%d)", a.Axis, a.Int())
	}
	return fmt.Sprintf("%s(%d)", a.Axis, a.Value)
}

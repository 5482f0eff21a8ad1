// Package tool reconstructs pen tool events from classified input events.
//
// The digitizer reports one axis per record and closes each sample with a
// Sync. Tool events are the finished samples: an Update carrying the full
// pose, or Removed when the tool leaves range.
package tool

import (
	"fmt"

	"remarkable-relay/internal/input"
)

// Point is a position in digitizer units.
type Point struct {
	X, Y uint32
}

func (p Point) String() string { return fmt.Sprintf("%d,%d", p.X, p.Y) }

// HeightKind tags a Height.
type HeightKind uint8

const (
	HeightMissing HeightKind = iota
	HeightDistance
	HeightTouching
)

// Height is the contact classification of a sample. Value is the hover
// distance for HeightDistance, the pressure for HeightTouching, and zero
// for HeightMissing.
type Height struct {
	Kind  HeightKind
	Value uint32
}

// Missing is the Height of a sample without pressure or distance.
func Missing() Height {
	return Height{Kind: HeightMissing}
}

// Distance is the Height of a hovering tool.
func Distance(distance uint32) Height {
	return Height{Kind: HeightDistance, Value: distance}
}

// Touching is the Height of a tool in contact.
func Touching(pressure uint32) Height {
	return Height{Kind: HeightTouching, Value: pressure}
}

// IsTouching reports whether the tool is in contact with the surface.
func (h Height) IsTouching() bool { return h.Kind == HeightTouching }

func (h Height) String() string {
	switch h.Kind {
	case HeightDistance:
		return fmt.Sprintf("distance%d", h.Value)
	case HeightTouching:
		return fmt.Sprintf("touching%d", h.Value)
	}
	return "distance missing"
}

// Touch classification thresholds. A pen resting on the surface still
// reports a small hover distance, so contact needs both a near distance and
// a firm pressure.
const (
	touchMaxDistance = 10
	touchMinPressure = 700
)

// Classify derives the Height from the optional pressure and distance
// readings.
func Classify(pressure uint32, hasPressure bool, distance uint32, hasDistance bool) Height {
	switch {
	case hasPressure && hasDistance:
		if distance < touchMaxDistance && pressure > touchMinPressure {
			return Touching(pressure)
		}
		return Distance(distance)
	case hasPressure:
		return Touching(pressure)
	case hasDistance:
		return Distance(distance)
	}
	return Missing()
}

// Tool is one complete sample of a tool in range.
type Tool struct {
	Kind   input.ToolKind
	Point  Point
	TiltX  *int32
	TiltY  *int32
	Height Height
}

func (t Tool) String() string {
	return fmt.Sprintf("%s at %s. tilt x%s y%s. %s", t.Kind, t.Point, optString(t.TiltX), optString(t.TiltY), t.Height)
}

func optString(v *int32) string {
	if v == nil {
		return "None"
	}
	return fmt.Sprintf("Some(%d)", *v)
}

// EventKind tags an Event.
type EventKind uint8

const (
	KindUpdate EventKind = iota + 1
	KindRemoved
)

// Event is a reconstructed tool event. Tool is set only for KindUpdate.
type Event struct {
	Kind EventKind
	Tool Tool
}

// Update returns an Update event carrying t.
func Update(t Tool) Event { return Event{Kind: KindUpdate, Tool: t} }

// Removed returns a Removed event.
func Removed() Event { return Event{Kind: KindRemoved} }

func (e Event) String() string {
	switch e.Kind {
	case KindUpdate:
		return "Update(" + e.Tool.String() + ")"
	case KindRemoved:
		return "Removed"
	}
	return fmt.Sprintf("EventKind(%d)", uint8(e.Kind))
}

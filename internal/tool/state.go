package tool

import (
	"errors"
	"fmt"

	"remarkable-relay/internal/input"
)

// Phase tags a State.
type Phase uint8

const (
	// Idle: no tool in range. Axis samples are dropped; they would be
	// cleared at the next acquisition anyway.
	Idle Phase = iota
	// Accumulating: a tool is in range and axis samples are collected until
	// the next Sync.
	Accumulating
)

func (p Phase) String() string {
	if p == Accumulating {
		return "Accumulating"
	}
	return "Idle"
}

type axisSet uint8

func bit(a input.AxisKind) axisSet { return 1 << a }

// Partial is the builder state of one tool. Axis values persist across
// Syncs: the digitizer only reports axes that changed.
type Partial struct {
	Kind input.ToolKind

	x, y               uint32
	tiltX, tiltY       int32
	pressure, distance uint32
	has                axisSet
}

// Has reports whether a value for axis has been seen.
func (p Partial) Has(axis input.AxisKind) bool { return p.has&bit(axis) != 0 }

func (p Partial) apply(a input.Axis) Partial {
	switch a.Axis {
	case input.X:
		p.x = a.Value
	case input.Y:
		p.y = a.Value
	case input.TiltX:
		p.tiltX = a.Int()
	case input.TiltY:
		p.tiltY = a.Int()
	case input.Pressure:
		p.pressure = a.Value
	case input.Distance:
		p.distance = a.Value
	default:
		// Classify only produces the axes above.
		panic(fmt.Sprintf("tool: unknown axis %d", a.Axis))
	}
	p.has |= bit(a.Axis)
	return p
}

// State is the complete reconstruction state. The zero value is Idle with
// nothing pending.
type State struct {
	Phase   Phase
	Partial Partial

	// SkipSyncs counts Syncs still to be consumed as housekeeping. The
	// device sends a Sync after a tool removal, and the removal has already
	// been reported by then.
	SkipSyncs int
}

// ErrIncomplete is matched by every *IncompleteError.
var ErrIncomplete = errors.New("incomplete sample")

// IncompleteError reports a Sync reached before X, Y and the tool kind
// were known. It is expected while a tool is being acquired.
type IncompleteError struct {
	Phase   Phase
	Kind    input.ToolKind
	Missing string
}

func (e *IncompleteError) Error() string {
	if e.Phase == Idle {
		return fmt.Sprintf("sync without active tool, missing %s", e.Missing)
	}
	return fmt.Sprintf("unfinished %s event, missing %s", e.Kind, e.Missing)
}

func (e *IncompleteError) Unwrap() error { return ErrIncomplete }

// Finish builds a Tool from the accumulated sample.
func (s State) Finish() (Tool, error) {
	p := s.Partial
	incomplete := func(missing string) error {
		return &IncompleteError{Phase: s.Phase, Kind: p.Kind, Missing: missing}
	}
	if !p.Has(input.X) {
		return Tool{}, incomplete("X")
	}
	if !p.Has(input.Y) {
		return Tool{}, incomplete("Y")
	}
	if s.Phase != Accumulating {
		return Tool{}, incomplete("kind")
	}

	t := Tool{
		Kind:   p.Kind,
		Point:  Point{X: p.x, Y: p.y},
		Height: Classify(p.pressure, p.Has(input.Pressure), p.distance, p.Has(input.Distance)),
	}
	if p.Has(input.TiltX) {
		v := p.tiltX
		t.TiltX = &v
	}
	if p.Has(input.TiltY) {
		v := p.tiltY
		t.TiltY = &v
	}
	return t, nil
}

// Outcome is what one Step produced besides the next state.
type Outcome struct {
	// Event is valid when Emit is set.
	Event Event
	Emit  bool

	// Skipped is set when a Sync was consumed by the skip counter.
	Skipped bool

	// Incomplete is set when a Sync could not finish the sample. The
	// sample is dropped; reconstruction continues.
	Incomplete error
}

// Step applies one event to s. It is pure: s is not modified.
func Step(s State, ev input.Event) (State, Outcome) {
	switch ev := ev.(type) {
	case input.ToolPresence:
		// Contact is derived from the Height, never from the Touch key.
		if ev.Kind == input.Touch {
			return s, Outcome{}
		}
		if ev.Present {
			return State{
				Phase:     Accumulating,
				Partial:   Partial{Kind: ev.Kind},
				SkipSyncs: s.SkipSyncs,
			}, Outcome{}
		}
		// Removal is reported now; the Sync that follows it is skipped.
		return State{
			Phase:     Idle,
			SkipSyncs: s.SkipSyncs + 1,
		}, Outcome{Event: Removed(), Emit: true}

	case input.Axis:
		if s.Phase == Idle {
			return s, Outcome{}
		}
		s.Partial = s.Partial.apply(ev)
		return s, Outcome{}

	case input.Sync:
		if s.SkipSyncs > 0 {
			s.SkipSyncs--
			return s, Outcome{Skipped: true}
		}
		t, err := s.Finish()
		if err != nil {
			return s, Outcome{Incomplete: err}
		}
		return s, Outcome{Event: Update(t), Emit: true}
	}
	return s, Outcome{}
}

package tool

import (
	"fmt"
	"io"
	"log/slog"

	"remarkable-relay/internal/evdev"
	"remarkable-relay/internal/input"
)

// Reconstructor is the stateful driver of Step.
type Reconstructor struct {
	state  State
	logger *slog.Logger
}

// NewReconstructor returns a Reconstructor in the Idle state. A nil logger
// discards diagnostics.
func NewReconstructor(logger *slog.Logger) *Reconstructor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconstructor{logger: logger}
}

// State returns the current state.
func (r *Reconstructor) State() State { return r.state }

// Feed applies ev and returns the tool event it completed, if any.
func (r *Reconstructor) Feed(ev input.Event) (Event, bool) {
	next, out := Step(r.state, ev)
	r.state = next
	if out.Incomplete != nil {
		r.logger.Debug("dropping sample on sync", "error", out.Incomplete)
	}
	return out.Event, out.Emit
}

// Source reads tool events from a raw input_event stream.
type Source struct {
	records *evdev.Reader
	rec     *Reconstructor
}

// NewSource returns a Source reading records from r.
func NewSource(r io.Reader, logger *slog.Logger) *Source {
	return &Source{
		records: evdev.NewReader(r),
		rec:     NewReconstructor(logger),
	}
}

// Next blocks until the stream completes a tool event. Errors are fatal to
// the stream: io.EOF when it ended, evdev.ErrShortRecord when it ended
// inside a record, and an *input.UnknownEventError for unsupported records.
func (s *Source) Next() (Event, error) {
	for {
		raw, err := s.records.ReadRecord()
		if err != nil {
			return Event{}, err
		}
		ev, err := input.Classify(raw)
		if err != nil {
			return Event{}, fmt.Errorf("read unknown event: %w", err)
		}
		if out, ok := s.rec.Feed(ev); ok {
			return out, nil
		}
	}
}

package sink

// Stroke state machine for the co-drawing server.
//
// A stroke begins when the tool starts touching the surface and ends when
// it lifts, leaves proximity, or the sink closes. Each touching update
// contributes one point, normalised to [0,1] using the digitizer ranges.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"remarkable-relay/internal/input"
	"remarkable-relay/internal/tool"
)

// JSONWriter sends one JSON message. *WSConn implements it.
type JSONWriter interface {
	WriteJSON(v any) error
}

// Ranges are the raw axis bounds used to normalise points.
type Ranges struct {
	XMin        int32
	XMax        int32
	YMin        int32
	YMax        int32
	PressureMin int32
	PressureMax int32
}

// StrokeOptions configures a Stroke sink.
type StrokeOptions struct {
	Brush          string
	Color          string
	MaxBatchPoints int
	Ranges         Ranges
	Logger         *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// EraserBrush is sent while the rubber end of the pen is in use.
const EraserBrush = "eraser"

type outStrokeBegin struct {
	T     string `json:"t"`
	ID    string `json:"id"`
	Layer string `json:"layer"`
	Brush string `json:"brush"`
	Color string `json:"color,omitempty"`
	TS    int64  `json:"ts"`
}

type outStrokePts struct {
	T   string      `json:"t"`
	ID  string      `json:"id"`
	Pts [][]float64 `json:"pts"`
}

type outStrokeEnd struct {
	T  string `json:"t"`
	ID string `json:"id"`
	TS int64  `json:"ts"`
}

// Stroke turns tool events into stroke_begin, stroke_pts and stroke_end
// messages. It is not safe for concurrent use.
type Stroke struct {
	w    JSONWriter
	opts StrokeOptions

	strokeID string
	batch    [][]float64
	strokes  int

	// Used to drop micro-jitter after normalization.
	lastNormX    float64
	lastNormY    float64
	haveLastNorm bool
}

func NewStroke(w JSONWriter, opts StrokeOptions) *Stroke {
	if opts.MaxBatchPoints <= 0 {
		opts.MaxBatchPoints = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Stroke{w: w, opts: opts}
}

// Strokes returns the number of strokes ended so far.
func (s *Stroke) Strokes() int { return s.strokes }

func (s *Stroke) Handle(ctx context.Context, ev tool.Event) error {
	if ev.Kind == tool.KindRemoved {
		return s.end(ctx)
	}

	t := ev.Tool
	down := t.Height.IsTouching()
	switch {
	case down && s.strokeID == "":
		if err := s.begin(ctx, t.Kind); err != nil {
			return err
		}
	case !down && s.strokeID != "":
		return s.end(ctx)
	case !down:
		return nil
	}

	x := norm(int32(t.Point.X), s.opts.Ranges.XMin, s.opts.Ranges.XMax)
	y := norm(int32(t.Point.Y), s.opts.Ranges.YMin, s.opts.Ranges.YMax)
	p := norm(int32(t.Height.Value), s.opts.Ranges.PressureMin, s.opts.Ranges.PressureMax)

	if s.haveLastNorm {
		dx := x - s.lastNormX
		dy := y - s.lastNormY
		if dx*dx+dy*dy < 1e-8 {
			return nil
		}
	}
	s.lastNormX, s.lastNormY, s.haveLastNorm = x, y, true

	s.batch = append(s.batch, []float64{x, y, p, float64(s.nowMS())})
	if len(s.batch) >= s.opts.MaxBatchPoints {
		return s.flush()
	}
	return nil
}

// Close ends any open stroke. The underlying writer stays open.
func (s *Stroke) Close() error {
	return s.end(context.Background())
}

func (s *Stroke) begin(ctx context.Context, kind input.ToolKind) error {
	brush := s.opts.Brush
	if kind == input.Rubber {
		brush = EraserBrush
	}
	s.strokeID = fmt.Sprintf("u_%x", s.opts.Now().UnixNano())
	s.batch = nil
	s.haveLastNorm = false
	s.opts.Logger.DebugContext(ctx, "stroke begin", "id", s.strokeID, "brush", brush)
	return s.w.WriteJSON(outStrokeBegin{
		T:     "stroke_begin",
		ID:    s.strokeID,
		Layer: "user",
		Brush: brush,
		Color: s.opts.Color,
		TS:    s.nowMS(),
	})
}

func (s *Stroke) end(ctx context.Context) error {
	if s.strokeID == "" {
		return nil
	}
	id := s.strokeID
	err := s.flush()
	s.strokeID = ""
	s.batch = nil
	if err != nil {
		return err
	}
	s.strokes++
	s.opts.Logger.DebugContext(ctx, "stroke end", "id", id, "strokes", s.strokes)
	return s.w.WriteJSON(outStrokeEnd{T: "stroke_end", ID: id, TS: s.nowMS()})
}

func (s *Stroke) flush() error {
	if s.strokeID == "" || len(s.batch) == 0 {
		return nil
	}
	if err := s.w.WriteJSON(outStrokePts{T: "stroke_pts", ID: s.strokeID, Pts: s.batch}); err != nil {
		return err
	}
	s.batch = nil
	return nil
}

func (s *Stroke) nowMS() int64 { return s.opts.Now().UnixMilli() }

// norm maps v from [vmin, vmax] onto [0,1]. A degenerate range maps to 0.
func norm(v, vmin, vmax int32) float64 {
	if vmax <= vmin {
		return 0
	}
	f := float64(v-vmin) / float64(vmax-vmin)
	return math.Min(1, math.Max(0, f))
}

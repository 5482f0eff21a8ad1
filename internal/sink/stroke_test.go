package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remarkable-relay/internal/input"
	"remarkable-relay/internal/tool"
)

type recordingWriter struct {
	msgs []any
	err  error
}

func (r *recordingWriter) WriteJSON(v any) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, v)
	return nil
}

func (r *recordingWriter) types() []string {
	var out []string
	for _, m := range r.msgs {
		switch m.(type) {
		case outStrokeBegin:
			out = append(out, "begin")
		case outStrokePts:
			out = append(out, "pts")
		case outStrokeEnd:
			out = append(out, "end")
		}
	}
	return out
}

var testRanges = Ranges{XMax: 1000, YMax: 2000, PressureMax: 4000}

func fixedClock() func() time.Time {
	at := time.UnixMilli(1_700_000_000_000)
	return func() time.Time { return at }
}

func newTestStroke(w JSONWriter, batch int) *Stroke {
	return NewStroke(w, StrokeOptions{
		Brush:          "pen",
		Color:          "#112233",
		MaxBatchPoints: batch,
		Ranges:         testRanges,
		Now:            fixedClock(),
	})
}

func hover(kind input.ToolKind, x, y uint32) tool.Event {
	return tool.Update(tool.Tool{Kind: kind, Point: tool.Point{X: x, Y: y}, Height: tool.Distance(40)})
}

func touch(kind input.ToolKind, x, y, pressure uint32) tool.Event {
	return tool.Update(tool.Tool{Kind: kind, Point: tool.Point{X: x, Y: y}, Height: tool.Touching(pressure)})
}

func feed(t *testing.T, s *Stroke, events ...tool.Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, s.Handle(context.Background(), ev))
	}
}

func TestStrokeHoverSendsNothing(t *testing.T) {
	w := &recordingWriter{}
	s := newTestStroke(w, 64)
	feed(t, s, hover(input.Pen, 1, 1), hover(input.Pen, 2, 2), tool.Removed())
	assert.Empty(t, w.msgs)
	assert.Equal(t, 0, s.Strokes())
}

func TestStrokeLifecycle(t *testing.T) {
	w := &recordingWriter{}
	s := newTestStroke(w, 64)
	feed(t, s,
		hover(input.Pen, 100, 100),
		touch(input.Pen, 500, 1000, 2000),
		touch(input.Pen, 1000, 2000, 4000),
		hover(input.Pen, 1000, 2000),
	)

	require.Equal(t, []string{"begin", "pts", "end"}, w.types())

	begin := w.msgs[0].(outStrokeBegin)
	assert.Equal(t, "stroke_begin", begin.T)
	assert.Equal(t, "user", begin.Layer)
	assert.Equal(t, "pen", begin.Brush)
	assert.Equal(t, "#112233", begin.Color)
	assert.Equal(t, int64(1_700_000_000_000), begin.TS)

	pts := w.msgs[1].(outStrokePts)
	assert.Equal(t, begin.ID, pts.ID)
	assert.Equal(t, [][]float64{
		{0.5, 0.5, 0.5, 1_700_000_000_000},
		{1, 1, 1, 1_700_000_000_000},
	}, pts.Pts)

	end := w.msgs[2].(outStrokeEnd)
	assert.Equal(t, "stroke_end", end.T)
	assert.Equal(t, begin.ID, end.ID)
	assert.Equal(t, 1, s.Strokes())
}

func TestStrokeRemovedEndsStroke(t *testing.T) {
	w := &recordingWriter{}
	s := newTestStroke(w, 64)
	feed(t, s, touch(input.Pen, 10, 10, 900), tool.Removed())
	assert.Equal(t, []string{"begin", "pts", "end"}, w.types())

	// A second removal has nothing to end.
	feed(t, s, tool.Removed())
	assert.Len(t, w.msgs, 3)
}

func TestStrokeRubberUsesEraser(t *testing.T) {
	w := &recordingWriter{}
	s := newTestStroke(w, 64)
	feed(t, s, touch(input.Rubber, 10, 10, 900))
	require.NotEmpty(t, w.msgs)
	assert.Equal(t, EraserBrush, w.msgs[0].(outStrokeBegin).Brush)
}

func TestStrokeBatching(t *testing.T) {
	w := &recordingWriter{}
	s := newTestStroke(w, 2)
	feed(t, s,
		touch(input.Pen, 100, 100, 900),
		touch(input.Pen, 200, 200, 900),
		touch(input.Pen, 300, 300, 900),
	)
	assert.Equal(t, []string{"begin", "pts"}, w.types())
	assert.Len(t, w.msgs[1].(outStrokePts).Pts, 2)

	require.NoError(t, s.Close())
	assert.Equal(t, []string{"begin", "pts", "pts", "end"}, w.types())
	assert.Len(t, w.msgs[2].(outStrokePts).Pts, 1)
}

func TestStrokeDropsJitter(t *testing.T) {
	w := &recordingWriter{}
	s := newTestStroke(w, 64)
	feed(t, s,
		touch(input.Pen, 100, 100, 900),
		touch(input.Pen, 100, 100, 950),
		touch(input.Pen, 101, 100, 950),
	)
	require.NoError(t, s.Close())
	require.Equal(t, []string{"begin", "pts", "end"}, w.types())
	assert.Len(t, w.msgs[1].(outStrokePts).Pts, 2)
}

func TestStrokeWriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("socket gone")}
	s := newTestStroke(w, 64)
	err := s.Handle(context.Background(), touch(input.Pen, 1, 1, 900))
	assert.EqualError(t, err, "socket gone")
}

func TestNorm(t *testing.T) {
	assert.Equal(t, 0.0, norm(-5, 0, 10))
	assert.Equal(t, 1.0, norm(50, 0, 10))
	assert.Equal(t, 0.25, norm(15, 10, 30))
	assert.Equal(t, 0.0, norm(5, 10, 10))
}

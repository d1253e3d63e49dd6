//nolint:funlen // ok for tests
package layout

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/gforce-sculpture/pkg/geometry"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/testsupport/sampledata"
)

type tooltipSpy struct{ closed int }

func (t *tooltipSpy) CloseTooltip() { t.closed++ }

type flatProjector struct{}

func (flatProjector) Project(p geometry.Vec3) (x, y float64, visible bool) {
	return p.X, -p.Z, p.X >= -200 && p.X <= 200
}

func datasets(codes ...string) []*model.SculptureDataset {
	ret := make([]*model.SculptureDataset, len(codes))
	for i, c := range codes {
		ret[i] = sampledata.Dataset(c, 50, 10)
	}
	return ret
}

func TestOffsets(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want []float64
	}{
		{"single", 1, []float64{0}},
		{"two", 2, []float64{-75, 75}},
		{"three", 3, []float64{-150, 0, 150}},
		{"five", 5, []float64{-300, -150, 0, 150, 300}},
		{"none", 0, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Offsets(tt.n, DefaultSpacing)); diff != "" {
				t.Errorf("Offsets() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLayout_placement(t *testing.T) {
	l := New(geometry.NewSynthesizer())
	entries, err := l.Layout(context.Background(), datasets("VER", "HAM", "LEC"))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	want := map[string]float64{"VER": -150, "HAM": 0, "LEC": 150}
	for _, e := range entries {
		assert.Equal(t, want[e.DriverCode], e.Offset)
		assert.Equal(t, want[e.DriverCode], e.Mesh.Offset.X)
		assert.Equal(t, want[e.DriverCode], e.Label.Anchor.X)
		assert.InDelta(t, e.Dataset.MaxHeight()+DefaultLabelClearance, e.Label.Anchor.Z, 1e-9)
		assert.Equal(t, e.DriverCode, e.Label.Text)
	}
	assert.Len(t, l.Meshes(), 3)
}

func TestLayout_relayoutDisposesPrevious(t *testing.T) {
	spy := &tooltipSpy{}
	l := New(geometry.NewSynthesizer(), WithTooltip(spy))
	first, err := l.Layout(context.Background(), datasets("VER", "HAM"))
	require.NoError(t, err)
	second, err := l.Layout(context.Background(), datasets("NOR"))
	require.NoError(t, err)

	for _, e := range first {
		assert.True(t, e.Mesh.Disposed())
		assert.True(t, e.Label.Disposed())
	}
	require.Len(t, second, 1)
	assert.Equal(t, 0.0, second[0].Offset)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 2, spy.closed)
}

func TestLayout_Remove(t *testing.T) {
	var events []RemoveEvent
	l := New(geometry.NewSynthesizer(),
		WithRemoveListener(func(ev RemoveEvent) { events = append(events, ev) }))
	_, err := l.Layout(context.Background(), datasets("VER", "HAM", "LEC"))
	require.NoError(t, err)
	ham, ok := l.Get("HAM")
	require.True(t, ok)

	assert.True(t, l.Remove("HAM"))
	assert.True(t, ham.Mesh.Disposed())
	assert.True(t, ham.Label.Disposed())

	remaining := l.Entries()
	require.Len(t, remaining, 2)
	// no repacking
	assert.Equal(t, -150.0, remaining[0].Offset)
	assert.Equal(t, 150.0, remaining[1].Offset)

	require.Len(t, events, 1)
	assert.Equal(t, "HAM", events[0].DriverCode)
	assert.Len(t, events[0].Remaining, 2)

	// unknown driver is a no-op
	assert.False(t, l.Remove("HAM"))
	assert.False(t, l.Remove("XYZ"))
	assert.Len(t, events, 1)
	assert.Equal(t, 2, l.Len())
}

func TestLayout_Add(t *testing.T) {
	l := New(geometry.NewSynthesizer())
	_, err := l.Layout(context.Background(), datasets("VER", "HAM"))
	require.NoError(t, err)

	e, err := l.Add(context.Background(), sampledata.Dataset("PIA", 30, 5))
	require.NoError(t, err)
	assert.Equal(t, 225.0, e.Offset)

	old, _ := l.Get("VER")
	replaced, err := l.Add(context.Background(), sampledata.Dataset("VER", 30, 5))
	require.NoError(t, err)
	assert.Equal(t, -75.0, replaced.Offset)
	assert.True(t, old.Mesh.Disposed())
	assert.Equal(t, 3, l.Len())
}

func TestLayout_AddEmpty(t *testing.T) {
	l := New(geometry.NewSynthesizer())
	e, err := l.Add(context.Background(), sampledata.Dataset("PIA", 30, 5))
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.Offset)
}

func TestLayout_ShowSingle(t *testing.T) {
	l := New(geometry.NewSynthesizer())
	prev, err := l.Layout(context.Background(), datasets("VER", "HAM"))
	require.NoError(t, err)
	ds := sampledata.Dataset("SAI", 40, 40)
	e, err := l.ShowSingle(ds)
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.Offset)
	// gradient colors without team blending
	assert.Equal(t, ds.Colors[0], e.Mesh.SampleColors[0])
	for _, p := range prev {
		assert.True(t, p.Mesh.Disposed())
	}
}

func TestLayout_Clear(t *testing.T) {
	spy := &tooltipSpy{}
	l := New(geometry.NewSynthesizer(), WithTooltip(spy))
	entries, err := l.Layout(context.Background(), datasets("VER", "HAM"))
	require.NoError(t, err)
	l.Clear()
	for _, e := range entries {
		assert.True(t, e.Mesh.Disposed())
	}
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Meshes())
	// clearing twice is harmless
	l.Clear()
	assert.Equal(t, 3, spy.closed)
}

func TestLayout_buildErrorKeepsState(t *testing.T) {
	l := New(geometry.NewSynthesizer())
	_, err := l.Layout(context.Background(), datasets("VER"))
	require.NoError(t, err)
	_, err = l.Layout(context.Background(), []*model.SculptureDataset{{DriverCode: "BAD"}})
	assert.ErrorIs(t, err, model.ErrInvalidDataset)
	assert.Equal(t, 1, l.Len())
}

func TestLayout_ProjectLabels(t *testing.T) {
	l := New(geometry.NewSynthesizer(), WithSpacing(300))
	_, err := l.Layout(context.Background(), datasets("VER", "HAM", "LEC"))
	require.NoError(t, err)
	labels := l.ProjectLabels(flatProjector{})
	require.Len(t, labels, 3)
	assert.Equal(t, "VER", labels[0].DriverCode)
	assert.Equal(t, -300.0, labels[0].X)
	assert.False(t, labels[0].Visible)
	assert.True(t, labels[1].Visible)
	assert.False(t, labels[2].Visible)
}

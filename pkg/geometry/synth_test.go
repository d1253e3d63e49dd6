//nolint:funlen // ok for tests
package geometry

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/testsupport/sampledata"
)

func TestBuildSingle_sampleCountAndColors(t *testing.T) {
	tests := []struct {
		name     string
		vertices int
		segments int
	}{
		{"minimal", 2, 1},
		{"colors equal vertices", 50, 50},
		{"coarse colors", 500, 37},
		{"single color", 120, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := sampledata.Dataset("VER", tt.vertices, tt.segments)
			b, err := NewSynthesizer().BuildSingle(ds)
			require.NoError(t, err)

			perRing := DefaultRadialSegments + 1
			assert.Equal(t, tt.vertices, b.Tube.SampleCount())
			assert.Equal(t, tt.vertices*perRing, b.Tube.VertexCount())
			assert.Len(t, b.Tube.Colors, len(b.Tube.Positions))
			assert.Len(t, b.Tube.Normals, len(b.Tube.Positions))
			assert.Equal(t, (tt.vertices-1)*DefaultRadialSegments*2, b.Tube.TriangleCount())
			for i, v := range b.Tube.Positions {
				if math.IsNaN(float64(v)) {
					t.Fatalf("position %d is NaN", i)
				}
			}
			for i := range b.SampleColors {
				want := ds.Colors[i*tt.segments/tt.vertices]
				assert.Equal(t, want, b.SampleColors[i], "sample %d", i)
			}
			for i := 0; i < len(b.Tube.Colors); i += 3 {
				ring := (i / 3) / perRing
				c := b.SampleColors[ring]
				assert.Equal(t, float32(c.R), b.Tube.Colors[i])
				assert.Equal(t, float32(c.B), b.Tube.Colors[i+2])
			}
		})
	}
}

func TestBuildSingle_deterministic(t *testing.T) {
	ds := sampledata.Dataset("HAM", 300, 64)
	s := NewSynthesizer()
	a, err := s.BuildSingle(ds)
	require.NoError(t, err)
	b, err := s.BuildSingle(ds)
	require.NoError(t, err)
	assert.Equal(t, a.Tube.Colors, b.Tube.Colors)
	assert.Equal(t, a.Tube.Positions, b.Tube.Positions)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestBuildSingle_invalidDataset(t *testing.T) {
	s := NewSynthesizer()
	tests := []struct {
		name string
		ds   *model.SculptureDataset
	}{
		{"nil", nil},
		{"one vertex", &model.SculptureDataset{
			Vertices: []model.TelemetryVertex{{}}, Colors: []model.Color{{}},
		}},
		{"no colors", &model.SculptureDataset{
			Vertices: []model.TelemetryVertex{{}, {X: 1}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.BuildSingle(tt.ds)
			assert.True(t, errors.Is(err, model.ErrInvalidDataset), "got %v", err)
		})
	}
}

func TestBuildSingle_tubeRadius(t *testing.T) {
	ds := sampledata.Line("LEC", 5)
	b, err := NewSynthesizer().BuildSingle(ds)
	require.NoError(t, err)
	perRing := DefaultRadialSegments + 1
	for i := 0; i < b.Tube.VertexCount(); i++ {
		ring := i / perRing
		center := Vec3{ds.Vertices[ring].X, ds.Vertices[ring].Y, ds.Vertices[ring].Z}
		p := b.Tube.vertex(uint32(i))
		assert.InDelta(t, DefaultRadius, p.Dist(center), 1e-5)
		// along the x axis the ring lies in the y/z plane
		assert.InDelta(t, center.X, p.X, 1e-5)
	}
}

func TestBuildSingle_duplicateSamples(t *testing.T) {
	ds := sampledata.Line("NOR", 4)
	ds.Vertices[2] = ds.Vertices[1]
	b, err := NewSynthesizer().BuildSingle(ds)
	require.NoError(t, err)
	for _, v := range b.Tube.Normals {
		assert.False(t, math.IsNaN(float64(v)))
	}
}

func TestBuildSingle_groundOutline(t *testing.T) {
	ds := sampledata.Dataset("PIA", 40, 8)
	b, err := NewSynthesizer(WithGroundHeight(-5)).BuildSingle(ds)
	require.NoError(t, err)
	require.Equal(t, 40, b.Outline.PointCount())
	for i, v := range ds.Vertices {
		assert.InDelta(t, v.X, b.Outline.Positions[i*3], 1e-4)
		assert.InDelta(t, v.Y, b.Outline.Positions[i*3+1], 1e-4)
		assert.InDelta(t, -5, b.Outline.Positions[i*3+2], 1e-6)
	}
}

func TestBlendTeamColor(t *testing.T) {
	team := model.Color{R: 0.2, G: 0.4, B: 0.8}
	tests := []struct {
		name     string
		gradient model.Color
		want     model.Color
	}{
		{"no g-force keeps team color", model.Color{R: 0, G: 1, B: 0.3}, team},
		{
			"full g-force", model.Color{R: 1, G: 0, B: 0.3},
			model.Color{R: 0.2*0.3 + 0.7, G: 0.4 * 0.3, B: 0.8 * 0.3},
		},
		{
			"half g-force", model.Color{R: 0.5, G: 0.5, B: 0.3},
			model.Color{R: 0.2*0.65 + 0.35, G: 0.4 * 0.65, B: 0.8 * 0.65},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BlendTeamColor(team, tt.gradient)
			assert.InDelta(t, tt.want.R, got.R, 1e-9)
			assert.InDelta(t, tt.want.G, got.G, 1e-9)
			assert.InDelta(t, tt.want.B, got.B, 1e-9)
		})
	}
}

func TestBuildMany(t *testing.T) {
	datasets := []*model.SculptureDataset{
		sampledata.Dataset("VER", 100, 20),
		sampledata.Dataset("HAM", 80, 80),
		sampledata.Dataset("LEC", 60, 10),
	}
	datasets[1].Driver.TeamColor = "not-a-color"
	bundles, err := NewSynthesizer().BuildMany(context.Background(), datasets)
	require.NoError(t, err)
	require.Len(t, bundles, 3)
	for i, b := range bundles {
		assert.Equal(t, datasets[i].Code(), b.DriverCode)
	}
	team, err := ParseHexColor("3671C6")
	require.NoError(t, err)
	assert.Equal(t, BlendTeamColor(team, datasets[0].Colors[0]), bundles[0].SampleColors[0])
	// unparsable team color falls back to the gradient
	assert.Equal(t, datasets[1].Colors[0], bundles[1].SampleColors[0])
}

func TestBuildMany_invalidDataset(t *testing.T) {
	datasets := []*model.SculptureDataset{
		sampledata.Dataset("VER", 100, 20),
		{DriverCode: "BAD"},
	}
	_, err := NewSynthesizer().BuildMany(context.Background(), datasets)
	assert.ErrorIs(t, err, model.ErrInvalidDataset)
}

func TestSegmentIndex(t *testing.T) {
	tests := []struct {
		i, pos, seg, want int
	}{
		{0, 10, 5, 0},
		{1, 10, 5, 0},
		{2, 10, 5, 1},
		{9, 10, 5, 4},
		{9, 10, 100, 90},
		{48, 49, 49, 48},
		{3, 49, 49, 3},
		{0, 0, 5, 0},
	}
	for _, tt := range tests {
		if got := SegmentIndex(tt.i, tt.pos, tt.seg); got != tt.want {
			t.Errorf("SegmentIndex(%d,%d,%d) = %d, want %d", tt.i, tt.pos, tt.seg, got, tt.want)
		}
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#FF8000")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c.R, 1e-9)
	assert.InDelta(t, 128.0/255, c.G, 1e-9)
	assert.InDelta(t, 0, c.B, 1e-9)

	short, err := ParseHexColor("#f80")
	require.NoError(t, err)
	assert.InDelta(t, 136.0/255, short.G, 1e-9)

	_, err = ParseHexColor("#12345")
	assert.Error(t, err)
	_, err = ParseHexColor("zzzzzz")
	assert.Error(t, err)
}

func TestMeshBundle_DisposeOnce(t *testing.T) {
	b, err := NewSynthesizer().BuildSingle(sampledata.Line("SAI", 3))
	require.NoError(t, err)
	calls := 0
	b.OnDispose(func(*MeshBundle) { calls++ })
	assert.True(t, b.Dispose())
	assert.False(t, b.Dispose())
	assert.True(t, b.Disposed())
	assert.Equal(t, 1, calls)
}

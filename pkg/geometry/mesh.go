package geometry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

// Mesh is an indexed triangle mesh with flat buffers as consumed by GPU engines.
// Positions, Normals and Colors hold 3 floats per vertex, Indices 3 per triangle.
type Mesh struct {
	Positions      []float32 `json:"positions"`
	Normals        []float32 `json:"normals"`
	Colors         []float32 `json:"colors"`
	Indices        []uint32  `json:"indices"`
	Rings          int       `json:"rings"`
	RadialSegments int       `json:"radialSegments"`
}

func (m *Mesh) VertexCount() int {
	return len(m.Positions) / 3
}

func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// SampleCount is the number of generated samples along the tube length
func (m *Mesh) SampleCount() int {
	return m.Rings
}

func (m *Mesh) vertex(idx uint32) Vec3 {
	o := int(idx) * 3
	return Vec3{
		float64(m.Positions[o]),
		float64(m.Positions[o+1]),
		float64(m.Positions[o+2]),
	}
}

// Triangle returns the corner positions of triangle k in mesh space
func (m *Mesh) Triangle(k int) (a, b, c Vec3) {
	o := k * 3
	return m.vertex(m.Indices[o]), m.vertex(m.Indices[o+1]), m.vertex(m.Indices[o+2])
}

// Outline is the flat ground projection of the path, rendered as line strip.
type Outline struct {
	Positions []float32 `json:"positions"`
	Height    float64   `json:"height"`
}

func (o *Outline) PointCount() int {
	return len(o.Positions) / 3
}

// MeshBundle groups the renderable resources derived from one dataset.
// The caller owns the bundle and must dispose it when it is no longer shown.
type MeshBundle struct {
	ID           uuid.UUID               `json:"id"`
	DriverCode   string                  `json:"driverCode"`
	Tube         *Mesh                   `json:"tube"`
	Outline      *Outline                `json:"outline"`
	SampleColors []model.Color           `json:"-"`
	Offset       Vec3                    `json:"offset"`
	Dataset      *model.SculptureDataset `json:"-"`

	bounds    Box
	mu        sync.Mutex
	disposed  bool
	onDispose []func(*MeshBundle)
}

// Bounds returns the world space bounding box (offset applied)
func (b *MeshBundle) Bounds() Box {
	return b.bounds.Translate(b.Offset)
}

func (b *MeshBundle) SetOffset(o Vec3) {
	b.Offset = o
}

// Dispose releases the bundle. Only the first call has an effect,
// it returns false on subsequent calls.
func (b *MeshBundle) Dispose() bool {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return false
	}
	b.disposed = true
	hooks := b.onDispose
	b.onDispose = nil
	b.mu.Unlock()

	for _, h := range hooks {
		h(b)
	}
	return true
}

func (b *MeshBundle) Disposed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposed
}

// OnDispose registers a hook called once when the bundle is disposed
func (b *MeshBundle) OnDispose(h func(*MeshBundle)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDispose = append(b.onDispose, h)
}

package picking

import (
	"sync"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/geometry"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

type (
	// MeshSource provides the active meshes in traversal order
	MeshSource interface {
		Meshes() []*geometry.MeshBundle
	}

	// MeshSourceFunc adapts a function to MeshSource
	MeshSourceFunc func() []*geometry.MeshBundle

	Result struct {
		DriverCode string                `json:"driverCode"`
		Driver     model.DriverInfo      `json:"driver"`
		Vertex     model.TelemetryVertex `json:"vertex"`
		Index      int                   `json:"index"`
		Hit        geometry.Vec3         `json:"hit"`
		Distance   float64               `json:"distance"`
	}

	Option func(*Index)

	// Index resolves pointer rays to telemetry samples. The last successful
	// pick is kept as tooltip state until the next miss or CloseTooltip.
	Index struct {
		src     MeshSource
		l       *log.Logger
		mu      sync.Mutex
		tooltip *Result
	}
)

func (f MeshSourceFunc) Meshes() []*geometry.MeshBundle {
	return f()
}

func WithLogger(l *log.Logger) Option {
	return func(idx *Index) {
		idx.l = l
	}
}

func New(src MeshSource, opts ...Option) *Index {
	ret := &Index{src: src, l: log.Default().Named("picking")}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Pick intersects the ray with all active meshes. The closest hit wins,
// equal distances are resolved by mesh order.
func (idx *Index) Pick(r Ray) (*Result, bool) {
	r.Direction = r.Direction.Normalize()
	if r.Direction.IsZero(epsilon) {
		return idx.miss()
	}
	var (
		best     *geometry.MeshBundle
		bestT    float64
		bestSeen bool
	)
	for _, m := range idx.src.Meshes() {
		if m.Disposed() {
			continue
		}
		t, ok := intersectMesh(r, m)
		if !ok {
			continue
		}
		if !bestSeen || t < bestT {
			best, bestT, bestSeen = m, t, true
		}
	}
	if !bestSeen {
		return idx.miss()
	}
	hit := r.at(bestT)
	i, v := NearestVertex(best.Dataset.Vertices, hit.Sub(best.Offset))
	res := &Result{
		DriverCode: best.DriverCode,
		Driver:     best.Dataset.Driver,
		Vertex:     v,
		Index:      i,
		Hit:        hit,
		Distance:   bestT,
	}
	idx.l.Debug("pick",
		log.String("driver", res.DriverCode),
		log.Int("index", i),
		log.Float64("gForce", v.GForce))

	idx.mu.Lock()
	idx.tooltip = res
	idx.mu.Unlock()
	return res, true
}

// Tooltip returns the currently shown pick
func (idx *Index) Tooltip() (*Result, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.tooltip, idx.tooltip != nil
}

func (idx *Index) CloseTooltip() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tooltip = nil
}

func (idx *Index) miss() (*Result, bool) {
	idx.CloseTooltip()
	return nil, false
}

// NearestVertex scans all vertices and returns the one closest to p.
// Earlier vertices win on equal distance.
func NearestVertex(vertices []model.TelemetryVertex, p geometry.Vec3) (int, model.TelemetryVertex) {
	best := -1
	bestD := 0.0
	for i := range vertices {
		v := &vertices[i]
		d := geometry.Vec3{X: v.X, Y: v.Y, Z: v.Z}.DistSq(p)
		if best < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	if best < 0 {
		return -1, model.TelemetryVertex{}
	}
	return best, vertices[best]
}

func intersectMesh(r Ray, m *geometry.MeshBundle) (float64, bool) {
	if !r.intersectsBox(m.Bounds()) {
		return 0, false
	}
	// triangles are stored in mesh space
	local := Ray{Origin: r.Origin.Sub(m.Offset), Direction: r.Direction}
	found := false
	bestT := 0.0
	for k := 0; k < m.Tube.TriangleCount(); k++ {
		a, b, c := m.Tube.Triangle(k)
		if t, ok := local.intersectTriangle(a, b, c); ok && (!found || t < bestT) {
			bestT, found = t, true
		}
	}
	return bestT, found
}

package layout

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/geometry"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

const (
	DefaultSpacing        = 150.0
	DefaultLabelClearance = 30.0
)

type (
	// Builder creates mesh bundles for datasets
	Builder interface {
		BuildSingle(ds *model.SculptureDataset) (*geometry.MeshBundle, error)
		BuildMany(
			ctx context.Context,
			datasets []*model.SculptureDataset,
		) ([]*geometry.MeshBundle, error)
	}

	// Projector maps a world position to screen coordinates for the current frame
	Projector interface {
		Project(world geometry.Vec3) (x, y float64, visible bool)
	}

	// TooltipCloser is notified when the layout is cleared
	TooltipCloser interface {
		CloseTooltip()
	}

	Label struct {
		ID       uuid.UUID     `json:"id"`
		Text     string        `json:"text"`
		Subtitle string        `json:"subtitle,omitempty"`
		Anchor   geometry.Vec3 `json:"anchor"`
		mu       sync.Mutex
		disposed bool
	}

	Entry struct {
		DriverCode string                  `json:"driverCode"`
		Mesh       *geometry.MeshBundle    `json:"mesh"`
		Label      *Label                  `json:"label"`
		Dataset    *model.SculptureDataset `json:"-"`
		Offset     float64                 `json:"offset"`
	}

	ScreenLabel struct {
		DriverCode string  `json:"driverCode"`
		Text       string  `json:"text"`
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Visible    bool    `json:"visible"`
	}

	RemoveEvent struct {
		DriverCode string
		Remaining  []*Entry
	}

	Option func(*Layout)

	// Layout owns the meshes and labels of all displayed sculptures.
	Layout struct {
		mu        sync.Mutex
		builder   Builder
		spacing   float64
		clearance float64
		entries   map[string]*Entry
		order     []string
		onRemove  []func(RemoveEvent)
		tooltip   TooltipCloser
		l         *log.Logger
	}
)

func WithSpacing(s float64) Option {
	return func(l *Layout) {
		l.spacing = s
	}
}

func WithLabelClearance(c float64) Option {
	return func(l *Layout) {
		l.clearance = c
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Layout) {
		l.l = logger
	}
}

// WithRemoveListener registers a callback invoked after a driver was removed
func WithRemoveListener(cb func(RemoveEvent)) Option {
	return func(l *Layout) {
		l.onRemove = append(l.onRemove, cb)
	}
}

func WithTooltip(t TooltipCloser) Option {
	return func(l *Layout) {
		l.tooltip = t
	}
}

func New(builder Builder, opts ...Option) *Layout {
	ret := &Layout{
		builder:   builder,
		spacing:   DefaultSpacing,
		clearance: DefaultLabelClearance,
		entries:   make(map[string]*Entry),
		l:         log.Default().Named("layout"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Offsets returns the x offsets for n sculptures centered around 0
func Offsets(n int, spacing float64) []float64 {
	ret := make([]float64, n)
	startX := -(float64(n-1) * spacing) / 2
	for i := range ret {
		ret[i] = startX + float64(i)*spacing
	}
	return ret
}

func (lb *Label) Dispose() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.disposed {
		return false
	}
	lb.disposed = true
	return true
}

func (lb *Label) Disposed() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.disposed
}

// ShowSingle replaces all displayed sculptures with a single one at offset 0.
// The gradient colors of the dataset are used as is.
func (l *Layout) ShowSingle(ds *model.SculptureDataset) (*Entry, error) {
	b, err := l.builder.BuildSingle(ds)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearLocked()
	e := l.newEntry(b, 0)
	l.entries[e.DriverCode] = e
	l.order = []string{e.DriverCode}
	return e, nil
}

// Layout rebuilds the complete comparison set. Any previously tracked entries
// are disposed. Placement is determined by the order of datasets.
//
//nolint:whitespace // editor/linter issue
func (l *Layout) Layout(
	ctx context.Context,
	datasets []*model.SculptureDataset,
) ([]*Entry, error) {
	bundles, err := l.builder.BuildMany(ctx, datasets)
	if err != nil {
		return nil, err
	}
	offsets := Offsets(len(bundles), l.spacing)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearLocked()
	ret := make([]*Entry, 0, len(bundles))
	for i, b := range bundles {
		e := l.newEntry(b, offsets[i])
		if old, ok := l.entries[e.DriverCode]; ok {
			l.l.Warn("duplicate driver in layout, keeping last",
				log.String("driver", e.DriverCode))
			l.disposeEntry(old)
			l.order = lo.Without(l.order, e.DriverCode)
		}
		l.entries[e.DriverCode] = e
		l.order = append(l.order, e.DriverCode)
		ret = append(ret, e)
	}
	l.l.Debug("layout rebuilt",
		log.Int("sculptures", len(ret)),
		log.Float64("spacing", l.spacing))
	return ret, nil
}

// Add places a sculpture next to the existing ones without moving them.
// An already present driver is replaced at its current offset.
func (l *Layout) Add(ctx context.Context, ds *model.SculptureDataset) (*Entry, error) {
	bundles, err := l.builder.BuildMany(ctx, []*model.SculptureDataset{ds})
	if err != nil {
		return nil, err
	}
	b := bundles[0]

	l.mu.Lock()
	defer l.mu.Unlock()
	if old, ok := l.entries[b.DriverCode]; ok {
		e := l.newEntry(b, old.Offset)
		l.disposeEntry(old)
		l.entries[e.DriverCode] = e
		return e, nil
	}
	offset := 0.0
	if len(l.order) > 0 {
		offset = lo.MaxBy(lo.Values(l.entries), func(a, b *Entry) bool {
			return a.Offset > b.Offset
		}).Offset + l.spacing
	}
	e := l.newEntry(b, offset)
	l.entries[e.DriverCode] = e
	l.order = append(l.order, e.DriverCode)
	return e, nil
}

// Remove disposes the resources of a driver. The remaining entries keep
// their offsets. Unknown drivers are ignored.
func (l *Layout) Remove(driverCode string) bool {
	l.mu.Lock()
	e, ok := l.entries[driverCode]
	if !ok {
		l.mu.Unlock()
		l.l.Warn("driver not in layout", log.String("driver", driverCode))
		return false
	}
	l.disposeEntry(e)
	delete(l.entries, driverCode)
	l.order = lo.Without(l.order, driverCode)
	remaining := l.entriesLocked()
	listeners := l.onRemove
	l.mu.Unlock()

	l.l.Debug("driver removed",
		log.String("driver", driverCode), log.Int("remaining", len(remaining)))
	for _, cb := range listeners {
		cb(RemoveEvent{DriverCode: driverCode, Remaining: remaining})
	}
	return true
}

// Clear disposes all tracked entries and closes an open tooltip
func (l *Layout) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearLocked()
}

func (l *Layout) Get(driverCode string) (*Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[driverCode]
	return e, ok
}

// Entries returns the tracked entries in placement order
func (l *Layout) Entries() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entriesLocked()
}

// Meshes returns the active meshes in traversal order
func (l *Layout) Meshes() []*geometry.MeshBundle {
	return lo.Map(l.Entries(), func(e *Entry, _ int) *geometry.MeshBundle {
		return e.Mesh
	})
}

func (l *Layout) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// ProjectLabels re-projects all label anchors for the current camera.
func (l *Layout) ProjectLabels(p Projector) []ScreenLabel {
	return lo.Map(l.Entries(), func(e *Entry, _ int) ScreenLabel {
		x, y, visible := p.Project(e.Label.Anchor)
		return ScreenLabel{
			DriverCode: e.DriverCode,
			Text:       e.Label.Text,
			X:          x,
			Y:          y,
			Visible:    visible,
		}
	})
}

func (l *Layout) entriesLocked() []*Entry {
	return lo.Map(l.order, func(code string, _ int) *Entry {
		return l.entries[code]
	})
}

func (l *Layout) newEntry(b *geometry.MeshBundle, offset float64) *Entry {
	b.SetOffset(geometry.Vec3{X: offset})
	ds := b.Dataset
	return &Entry{
		DriverCode: b.DriverCode,
		Mesh:       b,
		Dataset:    ds,
		Offset:     offset,
		Label: &Label{
			ID:       uuid.New(),
			Text:     b.DriverCode,
			Subtitle: ds.Driver.TeamName,
			Anchor:   geometry.Vec3{X: offset, Z: ds.MaxHeight() + l.clearance},
		},
	}
}

func (l *Layout) disposeEntry(e *Entry) {
	e.Mesh.Dispose()
	e.Label.Dispose()
}

func (l *Layout) clearLocked() {
	for _, code := range l.order {
		l.disposeEntry(l.entries[code])
	}
	l.entries = make(map[string]*Entry)
	l.order = nil
	if l.tooltip != nil {
		l.tooltip.CloseTooltip()
	}
}

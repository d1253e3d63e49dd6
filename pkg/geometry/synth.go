package geometry

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

const (
	DefaultRadius         = 1.0
	DefaultRadialSegments = 8
)

type (
	Synthesizer struct {
		radius       float64
		radial       int
		groundHeight float64
		l            *log.Logger
	}
	Option func(*Synthesizer)
)

func WithRadius(r float64) Option {
	return func(s *Synthesizer) {
		s.radius = r
	}
}

func WithRadialSegments(n int) Option {
	return func(s *Synthesizer) {
		s.radial = n
	}
}

// WithGroundHeight sets the height of the reference plane for the outline
func WithGroundHeight(h float64) Option {
	return func(s *Synthesizer) {
		s.groundHeight = h
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Synthesizer) {
		s.l = l
	}
}

func NewSynthesizer(opts ...Option) *Synthesizer {
	ret := &Synthesizer{
		radius: DefaultRadius,
		radial: DefaultRadialSegments,
		l:      log.Default().Named("geometry"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.radial < 3 {
		ret.radial = DefaultRadialSegments
	}
	return ret
}

// BuildSingle creates the tube and outline for a dataset using the
// g-force gradient colors of the dataset.
func (s *Synthesizer) BuildSingle(ds *model.SculptureDataset) (*MeshBundle, error) {
	return s.build(ds, nil)
}

// BuildTeamColored creates the bundle with colors blended between the
// team color and the high-g color.
//
//nolint:whitespace // editor/linter issue
func (s *Synthesizer) BuildTeamColored(
	ds *model.SculptureDataset,
	team model.Color,
) (*MeshBundle, error) {
	return s.build(ds, &team)
}

// BuildMany builds bundles for comparison mode. The team color of each driver
// is used for blending if it can be parsed. The result keeps the input order.
//
//nolint:whitespace // editor/linter issue
func (s *Synthesizer) BuildMany(
	ctx context.Context,
	datasets []*model.SculptureDataset,
) ([]*MeshBundle, error) {
	ret := make([]*MeshBundle, len(datasets))
	g, _ := errgroup.WithContext(ctx)
	for i, ds := range datasets {
		g.Go(func() error {
			var team *model.Color
			if ds != nil && ds.Driver.TeamColor != "" {
				if c, err := ParseHexColor(ds.Driver.TeamColor); err == nil {
					team = &c
				} else {
					s.l.Warn("ignoring team color",
						log.String("driver", ds.Code()), log.ErrorField(err))
				}
			}
			b, err := s.build(ds, team)
			if err != nil {
				return err
			}
			ret[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, b := range ret {
			if b != nil {
				b.Dispose()
			}
		}
		return nil, err
	}
	return ret, nil
}

//nolint:whitespace // editor/linter issue
func (s *Synthesizer) build(
	ds *model.SculptureDataset,
	team *model.Color,
) (*MeshBundle, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	pts := make([]Vec3, len(ds.Vertices))
	for i := range ds.Vertices {
		v := &ds.Vertices[i]
		pts[i] = Vec3{v.X, v.Y, v.Z}
	}
	tube, box := tessellate(pts, s.radius, s.radial)

	sampleColors := make([]model.Color, tube.Rings)
	for i := range sampleColors {
		c := ds.Colors[SegmentIndex(i, tube.Rings, len(ds.Colors))]
		if team != nil {
			c = BlendTeamColor(*team, c)
		}
		sampleColors[i] = c
	}
	perRing := s.radial + 1
	tube.Colors = make([]float32, 0, tube.Rings*perRing*3)
	for _, c := range sampleColors {
		for range perRing {
			tube.Colors = append(tube.Colors, float32(c.R), float32(c.G), float32(c.B))
		}
	}

	outline := &Outline{
		Positions: make([]float32, 0, len(pts)*3),
		Height:    s.groundHeight,
	}
	for _, p := range pts {
		outline.Positions = append(outline.Positions,
			float32(p.X), float32(p.Y), float32(s.groundHeight))
	}

	s.l.Debug("sculpture built",
		log.String("driver", ds.Code()),
		log.Int("rings", tube.Rings),
		log.Int("segments", len(ds.Colors)),
		log.Int("triangles", tube.TriangleCount()),
		log.Bool("teamColor", team != nil))

	return &MeshBundle{
		ID:           uuid.New(),
		DriverCode:   ds.Code(),
		Tube:         tube,
		Outline:      outline,
		SampleColors: sampleColors,
		Dataset:      ds,
		bounds:       box,
	}, nil
}

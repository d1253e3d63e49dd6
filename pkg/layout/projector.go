package layout

import (
	"errors"

	"github.com/mpapenbr/gforce-sculpture/pkg/geometry"
)

// MatrixProjector projects with a column-major 4x4 view-projection matrix
// onto a viewport of Width x Height pixels, origin top left.
type MatrixProjector struct {
	ViewProjection [16]float64 `json:"viewProjection"`
	Width          float64     `json:"width"`
	Height         float64     `json:"height"`
}

var ErrInvalidViewport = errors.New("invalid viewport")

func (m MatrixProjector) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return ErrInvalidViewport
	}
	return nil
}

// Project returns screen coordinates. Points behind the camera or outside
// the clip volume are not visible.
func (m MatrixProjector) Project(world geometry.Vec3) (x, y float64, visible bool) {
	e := m.ViewProjection
	cx := e[0]*world.X + e[4]*world.Y + e[8]*world.Z + e[12]
	cy := e[1]*world.X + e[5]*world.Y + e[9]*world.Z + e[13]
	cz := e[2]*world.X + e[6]*world.Y + e[10]*world.Z + e[14]
	cw := e[3]*world.X + e[7]*world.Y + e[11]*world.Z + e[15]
	if cw <= 0 {
		return 0, 0, false
	}
	nx, ny, nz := cx/cw, cy/cw, cz/cw
	x = (nx + 1) / 2 * m.Width
	y = (1 - ny) / 2 * m.Height
	visible = nx >= -1 && nx <= 1 && ny >= -1 && ny <= 1 && nz >= -1 && nz <= 1
	return x, y, visible
}

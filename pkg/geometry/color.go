package geometry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

const (
	// share of the high-g color at full intensity in comparison mode
	HighGBlend = 0.7
)

// HighGColor is the saturation red used to surface g-force peaks
var HighGColor = model.Color{R: 1, G: 0, B: 0}

// ParseHexColor parses colors like "#3671C6", "3671C6" or "#36C".
func ParseHexColor(s string) (model.Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return model.Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return model.Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return model.Color{
		R: float64((v>>16)&0xff) / 255,
		G: float64((v>>8)&0xff) / 255,
		B: float64(v&0xff) / 255,
	}, nil
}

// Intensity extracts the normalized g-force intensity from a gradient color.
// The upstream gradient encodes the intensity in the red channel.
func Intensity(c model.Color) float64 {
	return clamp01(c.R)
}

// BlendTeamColor mixes the team color with the high-g color according
// to the intensity of the original gradient color.
func BlendTeamColor(team, gradient model.Color) model.Color {
	w := HighGBlend * Intensity(gradient)
	return model.Color{
		R: team.R*(1-w) + HighGColor.R*w,
		G: team.G*(1-w) + HighGColor.G*w,
		B: team.B*(1-w) + HighGColor.B*w,
	}
}

// SegmentIndex maps generated sample i of posCount samples onto one of
// segmentCount color segments (nearest-neighbor, no interpolation).
func SegmentIndex(i, posCount, segmentCount int) int {
	if posCount <= 0 || segmentCount <= 0 {
		return 0
	}
	// floor(i/posCount*segmentCount) in integer arithmetic
	idx := i * segmentCount / posCount
	return min(max(idx, 0), segmentCount-1)
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

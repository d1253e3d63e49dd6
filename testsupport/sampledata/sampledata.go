// Package sampledata provides synthetic sculpture datasets for tests.
package sampledata

import (
	"fmt"
	"math"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

const trackRadius = 100.0

// Dataset returns a closed-loop trace with n vertices and segments colors.
// The g-force follows a sine wave, colors use the upstream gradient
// (r = intensity, g = 1 - intensity, b = 0.3).
func Dataset(code string, n, segments int) *model.SculptureDataset {
	ds := &model.SculptureDataset{
		DriverCode: code,
		Driver: model.DriverInfo{
			Abbreviation: code,
			FullName:     fmt.Sprintf("Driver %s", code),
			TeamName:     "Sample Racing",
			TeamColor:    "3671C6",
			LapTime:      "0 days 00:01:20.000000",
		},
		Vertices: make([]model.TelemetryVertex, n),
		Colors:   make([]model.Color, segments),
	}
	maxG, sumG, maxSpeed := 0.0, 0.0, 0.0
	for i := range n {
		a := float64(i) / float64(n) * 2 * math.Pi
		g := 2.5 + 2.5*math.Sin(3*a)
		speed := 200 + 100*math.Cos(a)
		ds.Vertices[i] = model.TelemetryVertex{
			X:        trackRadius * math.Cos(a),
			Y:        trackRadius * math.Sin(a),
			Z:        g * 20,
			Distance: float64(i) * 10,
			Speed:    speed,
			GForce:   g,
			LongG:    g * 0.6,
			LatG:     g * 0.8,
		}
		maxG = math.Max(maxG, g)
		maxSpeed = math.Max(maxSpeed, speed)
		sumG += g
	}
	for i := range segments {
		src := ds.Vertices[i*n/segments]
		gi := math.Min(src.GForce/5, 1)
		ds.Colors[i] = model.Color{R: gi, G: 1 - gi, B: 0.3}
	}
	ds.Metadata = model.SculptureMetadata{
		MaxGForce:     maxG,
		AvgGForce:     sumG / float64(n),
		MaxSpeed:      maxSpeed,
		TotalDistance: float64(n-1) * 10,
	}
	return ds
}

// Line returns a straight trace along the x axis with constant color
func Line(code string, n int) *model.SculptureDataset {
	ds := &model.SculptureDataset{
		DriverCode: code,
		Driver:     model.DriverInfo{Abbreviation: code, LapTime: "1:21.500"},
		Vertices:   make([]model.TelemetryVertex, n),
		Colors:     []model.Color{{R: 0.5, G: 0.5, B: 0.3}},
	}
	for i := range n {
		ds.Vertices[i] = model.TelemetryVertex{
			X: float64(i) * 10, Distance: float64(i) * 10, Speed: 250, GForce: 2.5,
		}
	}
	return ds
}

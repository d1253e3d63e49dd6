package model

import (
	"encoding/json"
	"fmt"
)

// TelemetryVertex is a single sample of the lap trace.
// X and Y are circuit coordinates, Z is the extrusion height.
type TelemetryVertex struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Distance float64 `json:"distance"`
	Speed    float64 `json:"speed"`
	GForce   float64 `json:"gForce"`
	LongG    float64 `json:"longG"`
	LatG     float64 `json:"latG"`
}

// Color is a normalized RGB color (each channel in [0,1])
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

type DriverInfo struct {
	Abbreviation string `json:"abbreviation"`
	FullName     string `json:"fullName,omitempty"`
	TeamName     string `json:"teamName,omitempty"`
	TeamColor    string `json:"teamColor,omitempty"`
	LapTime      string `json:"lapTime"`
	Compound     string `json:"compound,omitempty"`
}

type SculptureMetadata struct {
	MaxGForce     float64 `json:"maxGForce"`
	AvgGForce     float64 `json:"avgGForce"`
	MaxSpeed      float64 `json:"maxSpeed"`
	TotalDistance float64 `json:"totalDistance"`
}

// SculptureDataset is the result of a completed sculpture job.
// The order of Vertices is the path parametrization and must not be changed.
type SculptureDataset struct {
	DriverCode string            `json:"driverCode,omitempty"`
	Driver     DriverInfo        `json:"driver"`
	Vertices   []TelemetryVertex `json:"vertices"`
	Colors     []Color           `json:"colors"`
	Metadata   SculptureMetadata `json:"metadata"`
}

// Code returns the driver code identifying this sculpture
func (d *SculptureDataset) Code() string {
	if d.DriverCode != "" {
		return d.DriverCode
	}
	return d.Driver.Abbreviation
}

// Validate checks the minimal shape needed to synthesize geometry.
func (d *SculptureDataset) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: dataset is nil", ErrInvalidDataset)
	}
	if len(d.Vertices) < 2 {
		return fmt.Errorf("%w: need at least 2 vertices, got %d",
			ErrInvalidDataset, len(d.Vertices))
	}
	if len(d.Colors) == 0 {
		return fmt.Errorf("%w: color sequence is empty", ErrInvalidDataset)
	}
	return nil
}

// MaxHeight returns the largest Z value of the vertex sequence
func (d *SculptureDataset) MaxHeight() float64 {
	if len(d.Vertices) == 0 {
		return 0
	}
	ret := d.Vertices[0].Z
	for i := range d.Vertices {
		ret = max(ret, d.Vertices[i].Z)
	}
	return ret
}

type ComparisonResult struct {
	Sculptures     []*SculptureDataset `json:"sculptures"`
	TotalRequested int                 `json:"total_requested"`
	TotalGenerated int                 `json:"total_generated"`
}

// JobResult holds either a single sculpture or a comparison result.
type JobResult struct {
	Sculpture  *SculptureDataset
	Comparison *ComparisonResult
}

// Datasets returns all sculptures contained in the result in server order.
func (r *JobResult) Datasets() []*SculptureDataset {
	switch {
	case r == nil:
		return nil
	case r.Comparison != nil:
		return r.Comparison.Sculptures
	case r.Sculpture != nil:
		return []*SculptureDataset{r.Sculpture}
	default:
		return nil
	}
}

func (r *JobResult) UnmarshalJSON(data []byte) error {
	var shape struct {
		Sculptures json.RawMessage `json:"sculptures"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	if shape.Sculptures != nil {
		r.Comparison = &ComparisonResult{}
		return json.Unmarshal(data, r.Comparison)
	}
	r.Sculpture = &SculptureDataset{}
	return json.Unmarshal(data, r.Sculpture)
}

func (r JobResult) MarshalJSON() ([]byte, error) {
	if r.Comparison != nil {
		return json.Marshal(r.Comparison)
	}
	return json.Marshal(r.Sculpture)
}

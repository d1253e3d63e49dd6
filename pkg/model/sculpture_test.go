package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSculptureDataset_Validate(t *testing.T) {
	twoVertices := []TelemetryVertex{{X: 0}, {X: 1}}
	tests := []struct {
		name    string
		ds      *SculptureDataset
		wantErr bool
	}{
		{"nil", nil, true},
		{"single vertex", &SculptureDataset{
			Vertices: twoVertices[:1], Colors: []Color{{R: 1}},
		}, true},
		{"no colors", &SculptureDataset{Vertices: twoVertices}, true},
		{"minimal", &SculptureDataset{Vertices: twoVertices, Colors: []Color{{R: 1}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ds.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDataset) {
				t.Errorf("Validate() error = %v, want ErrInvalidDataset", err)
			}
		})
	}
}

func TestJobResult_UnmarshalJSON(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		var r JobResult
		require.NoError(t, json.Unmarshal([]byte(`{
			"vertices":[{"x":1,"y":2,"z":3,"gForce":1.5}],
			"colors":[{"r":0.3,"g":0.7,"b":0.3}],
			"metadata":{"maxGForce":1.5},
			"driver":{"abbreviation":"VER","lapTime":"0 days 00:01:23.456000"}
		}`), &r))
		require.NotNil(t, r.Sculpture)
		assert.Nil(t, r.Comparison)
		assert.Equal(t, "VER", r.Sculpture.Code())
		assert.Len(t, r.Datasets(), 1)
	})
	t.Run("comparison", func(t *testing.T) {
		var r JobResult
		require.NoError(t, json.Unmarshal([]byte(`{
			"sculptures":[
				{"driverCode":"VER","driver":{"abbreviation":"VER"}},
				{"driverCode":"HAM","driver":{"abbreviation":"HAM"}}
			],
			"total_requested":3,"total_generated":2
		}`), &r))
		require.NotNil(t, r.Comparison)
		assert.Equal(t, 3, r.Comparison.TotalRequested)
		codes := []string{}
		for _, d := range r.Datasets() {
			codes = append(codes, d.Code())
		}
		assert.Equal(t, []string{"VER", "HAM"}, codes)
	})
}

func TestTaskStatus_ToProgress(t *testing.T) {
	var s TaskStatus
	require.NoError(t, json.Unmarshal([]byte(`{
		"task_id":"abc123","status":"PROGRESS","stage":"extracting_telemetry",
		"progress":50,"message":"Extracting","error":null,"event_name":"Monaco"
	}`), &s))
	p := s.ToProgress()
	assert.Equal(t, StageExtractingTelemetry, p.Stage)
	assert.Equal(t, 50, p.Percent)
	assert.Equal(t, "Monaco", p.Session.EventName)
	assert.False(t, s.Error.IsValue())

	var queued TaskStatus
	require.NoError(t, json.Unmarshal([]byte(`{"task_id":"x","status":"PENDING"}`), &queued))
	assert.Equal(t, 0, queued.ToProgress().Percent)
}

func TestHealthStatus_Healthy(t *testing.T) {
	assert.True(t, (&HealthStatus{API: "healthy", Redis: "healthy", Celery: "no_workers"}).Healthy())
	assert.False(t, (&HealthStatus{API: "healthy", Redis: "unhealthy", Celery: "healthy"}).Healthy())
}

//nolint:funlen // ok for tests
package progress

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

func TestStageTitle(t *testing.T) {
	tests := []struct {
		stage string
		want  string
	}{
		{model.StageLoadingSession, "Loading session data"},
		{model.StageExtractingTelemetry, "Extracting telemetry"},
		{model.StageProcessingSculpture, "Building sculpture"},
		{"warming_tyres", "Processing"},
		{"", "Processing"},
	}
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			assert.Equal(t, tt.want, StageTitle(tt.stage))
		})
	}
}

func TestNext(t *testing.T) {
	session := model.SessionInfo{
		Year: 2024, EventName: "Monaco Grand Prix", SessionName: "Qualifying", Driver: "VER",
	}
	tests := []struct {
		name        string
		prev        View
		p           model.Progress
		wantPercent int
		wantTitle   string
		wantSub     string
	}{
		{
			name:        "first report",
			prev:        Idle(),
			p:           model.Progress{Stage: model.StageLoadingSession, Percent: 10, Session: session},
			wantPercent: 10,
			wantTitle:   "Loading session data",
			wantSub:     "2024 Monaco Grand Prix - Qualifying (VER)",
		},
		{
			name:        "regression is not shown",
			prev:        View{Phase: PhaseActive, Percent: 50, Subtitle: "keep"},
			p:           model.Progress{Stage: model.StageExtractingTelemetry, Percent: 40},
			wantPercent: 50,
			wantTitle:   "Extracting telemetry",
			wantSub:     "keep",
		},
		{
			name:        "clamped high",
			prev:        Idle(),
			p:           model.Progress{Stage: "other", Percent: 140},
			wantPercent: 100,
			wantTitle:   "Processing",
		},
		{
			name:        "clamped low",
			prev:        Idle(),
			p:           model.Progress{Percent: -3},
			wantPercent: 0,
			wantTitle:   "Processing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Next(tt.prev, tt.p)
			assert.Equal(t, PhaseActive, got.Phase)
			assert.Equal(t, tt.wantPercent, got.Percent)
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantSub, got.Subtitle)
		})
	}
}

func TestNext_ignoredAfterTerminal(t *testing.T) {
	done := Succeeded(Idle(), false)
	got := Next(done, model.Progress{Stage: model.StageLoadingSession, Percent: 20})
	assert.Equal(t, done, got)
}

func TestFailed(t *testing.T) {
	prev := View{Phase: PhaseActive, Percent: 40}
	tests := []struct {
		name      string
		err       error
		wantPhase Phase
		wantTitle string
		wantError string
		retryable bool
	}{
		{
			"task failure", &model.TaskError{TaskID: "abc", Message: "session not found"},
			PhaseError, "Failed", "session not found", true,
		},
		{
			"timeout", fmt.Errorf("polling: %w", model.ErrTimeout),
			PhaseError, "Timed out", "polling: job timed out", true,
		},
		{
			"invalid dataset", fmt.Errorf("bad: %w", model.ErrInvalidDataset),
			PhaseError, "Invalid result", "bad: invalid dataset", false,
		},
		{
			"submission", fmt.Errorf("%w: refused", model.ErrSubmission),
			PhaseError, "Submission failed", "job submission failed: refused", true,
		},
		{"cancelled", model.ErrCancelled, PhaseCancelled, "Cancelled", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Failed(prev, tt.err)
			assert.Equal(t, tt.wantPhase, got.Phase)
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantError, got.Error)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.Equal(t, 40, got.Percent)
			assert.True(t, got.Terminal())
		})
	}
}

func TestView_String(t *testing.T) {
	v := Next(Idle(), model.Progress{
		Stage: model.StageExtractingTelemetry, Percent: 40, Message: "Extracting VER",
	})
	assert.Equal(t, "[ 40%] Extracting telemetry: Extracting VER", v.String())
	assert.InDelta(t, 0.4, v.Fraction(), 1e-9)
	assert.Equal(t, "[100%] Sculpture ready (cached)", Succeeded(v, true).String())
}

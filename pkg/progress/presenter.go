// Package progress maps job tracker events to presentation state.
// All functions are pure, the caller keeps the current View.
package progress

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActive
	PhaseSuccess
	PhaseError
	PhaseCancelled
)

const genericTitle = "Processing"

var stageTitles = map[string]string{
	model.StageLoadingSession:      "Loading session data",
	model.StageExtractingTelemetry: "Extracting telemetry",
	model.StageProcessingSculpture: "Building sculpture",
}

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	case PhaseCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

type View struct {
	Phase     Phase  `json:"phase"`
	Stage     string `json:"stage,omitempty"`
	Title     string `json:"title"`
	Percent   int    `json:"percent"`
	Message   string `json:"message,omitempty"`
	Subtitle  string `json:"subtitle,omitempty"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable"`
}

// Fraction returns the percentage in the range [0,1]
func (v View) Fraction() float64 {
	return float64(v.Percent) / 100
}

func (v View) Terminal() bool {
	return v.Phase == PhaseSuccess || v.Phase == PhaseError || v.Phase == PhaseCancelled
}

func (v View) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%3d%%] %s", v.Percent, v.Title)
	if v.Message != "" {
		fmt.Fprintf(&sb, ": %s", v.Message)
	}
	if v.Error != "" {
		fmt.Fprintf(&sb, ": %s", v.Error)
	}
	return sb.String()
}

// StageTitle returns the display title for a stage. Unknown stages get a
// generic title.
func StageTitle(stage string) string {
	if t, ok := stageTitles[stage]; ok {
		return t
	}
	return genericTitle
}

func Idle() View {
	return View{Phase: PhaseIdle, Title: "Ready"}
}

// Submitted is shown while waiting for the first progress report
func Submitted(taskID string) View {
	return View{
		Phase:   PhaseActive,
		Title:   "Queued",
		Message: fmt.Sprintf("task %s", taskID),
	}
}

// Next applies a progress report to the previous view. The displayed percent
// never decreases while the job is active. Reports arriving after a terminal
// view are ignored.
func Next(prev View, p model.Progress) View {
	if prev.Terminal() {
		return prev
	}
	percent := clampPercent(p.Percent)
	if prev.Phase == PhaseActive && percent < prev.Percent {
		percent = prev.Percent
	}
	subtitle := prev.Subtitle
	if !p.Session.IsZero() {
		subtitle = SessionLine(p.Session)
	}
	return View{
		Phase:    PhaseActive,
		Stage:    p.Stage,
		Title:    StageTitle(p.Stage),
		Percent:  percent,
		Message:  p.Message,
		Subtitle: subtitle,
	}
}

func Succeeded(prev View, cached bool) View {
	title := "Sculpture ready"
	if cached {
		title = "Sculpture ready (cached)"
	}
	return View{Phase: PhaseSuccess, Title: title, Percent: 100, Subtitle: prev.Subtitle}
}

// Failed presents a terminal error. Transport and timeout failures as well
// as server side task failures offer a retry, malformed results do not.
func Failed(prev View, err error) View {
	if errors.Is(err, model.ErrCancelled) {
		return Cancelled(prev)
	}
	title := "Failed"
	switch {
	case errors.Is(err, model.ErrTimeout):
		title = "Timed out"
	case errors.Is(err, model.ErrSubmission):
		title = "Submission failed"
	case errors.Is(err, model.ErrInvalidDataset):
		title = "Invalid result"
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	var te *model.TaskError
	if errors.As(err, &te) {
		msg = te.Message
	}
	return View{
		Phase:     PhaseError,
		Title:     title,
		Percent:   prev.Percent,
		Subtitle:  prev.Subtitle,
		Error:     msg,
		Retryable: !errors.Is(err, model.ErrInvalidDataset),
	}
}

func Cancelled(prev View) View {
	return View{
		Phase:     PhaseCancelled,
		Title:     "Cancelled",
		Percent:   prev.Percent,
		Subtitle:  prev.Subtitle,
		Retryable: true,
	}
}

// SessionLine renders session metadata, e.g. "2024 Monaco Grand Prix - Qualifying (VER)"
func SessionLine(s model.SessionInfo) string {
	parts := make([]string, 0, 2)
	if s.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", s.Year))
	}
	if s.EventName != "" {
		parts = append(parts, s.EventName)
	}
	ret := strings.Join(parts, " ")
	if s.SessionName != "" {
		if ret != "" {
			ret += " - "
		}
		ret += s.SessionName
	}
	if s.Driver != "" {
		ret += fmt.Sprintf(" (%s)", s.Driver)
	}
	return strings.TrimSpace(ret)
}

func clampPercent(p int) int {
	return max(0, min(100, p))
}

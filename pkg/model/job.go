package model

import (
	"github.com/aarondl/opt/omitnull"
)

// CachedTaskID is the task id returned when the server already holds a result.
const CachedTaskID = "cached"

type TaskState string

const (
	TaskPending  TaskState = "PENDING"
	TaskQueued   TaskState = "QUEUED"
	TaskStarted  TaskState = "STARTED"
	TaskProgress TaskState = "PROGRESS"
	TaskSuccess  TaskState = "SUCCESS"
	TaskFailure  TaskState = "FAILURE"
	TaskRevoked  TaskState = "REVOKED"
)

// known progress stages, ordering is advisory
const (
	StageLoadingSession      = "loading_session"
	StageExtractingTelemetry = "extracting_telemetry"
	StageProcessingSculpture = "processing_sculpture"
)

// SessionInfo is optional session metadata attached to progress reports
type SessionInfo struct {
	Year        int    `json:"year,omitempty"`
	EventName   string `json:"event_name,omitempty"`
	SessionName string `json:"session_name,omitempty"`
	SessionDate string `json:"session_date,omitempty"`
	Driver      string `json:"driver,omitempty"`
}

func (s SessionInfo) IsZero() bool {
	return s == SessionInfo{}
}

// Progress is a single progress report of a running job.
type Progress struct {
	Stage   string
	Percent int
	Message string
	Session SessionInfo
}

// TaskResponse is returned by the submission endpoints.
type TaskResponse struct {
	TaskID string     `json:"task_id"`
	Status TaskState  `json:"status"`
	Result *JobResult `json:"result,omitempty"`
}

func (r *TaskResponse) IsCached() bool {
	return r.TaskID == CachedTaskID
}

// TaskStatus is returned by the status endpoint (polling fallback).
type TaskStatus struct {
	TaskID   string               `json:"task_id"`
	Status   TaskState            `json:"status"`
	Stage    omitnull.Val[string] `json:"stage"`
	Progress omitnull.Val[int]    `json:"progress"`
	Message  omitnull.Val[string] `json:"message"`
	Error    omitnull.Val[string] `json:"error"`
	SessionInfo
}

func (s *TaskStatus) ToProgress() Progress {
	return Progress{
		Stage:   s.Stage.GetOr(""),
		Percent: s.Progress.GetOr(0),
		Message: s.Message.GetOr(""),
		Session: s.SessionInfo,
	}
}

// HealthStatus reflects the side-channel health check of the job service.
type HealthStatus struct {
	API    string `json:"api"`
	Redis  string `json:"redis"`
	Celery string `json:"celery"`
}

// Healthy reports whether the broker and the worker pool are usable.
// "no_workers" is accepted as the server treats it as healthy as well.
func (h *HealthStatus) Healthy() bool {
	ok := func(s string) bool { return s == "healthy" || s == "no_workers" }
	return ok(h.API) && ok(h.Redis) && ok(h.Celery)
}

// EventInfo describes an event of a season
type EventInfo struct {
	Round    int    `json:"round"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Country  string `json:"country"`
	Date     string `json:"date"`
}

type SessionEntry struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Date     string `json:"date"`
}

type EventSessions struct {
	EventName string         `json:"eventName"`
	Sessions  []SessionEntry `json:"sessions"`
}

// SessionDriver is a participant of a session
type SessionDriver struct {
	Abbreviation string `json:"abbreviation"`
	Number       string `json:"number"`
	FullName     string `json:"fullName"`
	TeamName     string `json:"teamName"`
	TeamColor    string `json:"teamColor"`
}

// CacheStats are the counters of the service side result cache.
// A service without cache backend reports all zero.
type CacheStats struct {
	TotalKeys      int     `json:"total_keys"`
	SculptureCount int     `json:"sculpture_cache_count"`
	SessionCount   int     `json:"session_cache_count"`
	Hits           int     `json:"hits"`
	Misses         int     `json:"misses"`
	HitRate        float64 `json:"hit_rate"`
}

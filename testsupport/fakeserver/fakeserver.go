// Package fakeserver provides an in-process job service for tests.
// It mimics the REST endpoints and the websocket channel of the real service.
package fakeserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mpapenbr/gforce-sculpture/pkg/model"
)

type (
	// Task is the server side state of a submitted job
	Task struct {
		ID string
		// messages pushed after the connected message on every websocket connection
		Script []model.StreamMessage
		// status responses returned in order, the last one repeats
		Statuses []model.TaskStatus
		Result   *model.JobResult

		statusCalls int
		cancelled   bool
	}

	Server struct {
		*httptest.Server

		mu sync.Mutex
		// task ids handed out by the submission endpoints, in order
		NextIDs []string
		// results served for cached requests, keyed by SculptureRequest.CacheKey
		Cached  map[string]*model.JobResult
		Health  model.HealthStatus
		Version string
		// number of websocket connections closed right after the upgrade
		DropConnections int
		Events          map[int][]model.EventInfo
		Sessions        map[string]*model.EventSessions
		// participants keyed by "year/round/session"
		Drivers map[string][]model.SessionDriver
		Stats   model.CacheStats

		tasks     map[string]*Task
		submitted []any
		calls     map[string]int
		pings     int
		upgrader  websocket.Upgrader
	}
)

func New() *Server {
	s := &Server{
		Cached:   map[string]*model.JobResult{},
		Health:   model.HealthStatus{API: "healthy", Redis: "healthy", Celery: "healthy"},
		Version:  "2.0.0",
		Events:   map[int][]model.EventInfo{},
		Sessions: map[string]*model.EventSessions{},
		Drivers:  map[string][]model.SessionDriver{},
		tasks:    map[string]*Task{},
		calls:    map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tasks/sculpture", s.submitSculpture)
	mux.HandleFunc("POST /api/tasks/compare", s.submitCompare)
	mux.HandleFunc("GET /api/tasks/{id}", s.status)
	mux.HandleFunc("GET /api/tasks/{id}/result", s.result)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.cancel)
	mux.HandleFunc("GET /ws/tasks/{id}", s.websocket)
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /openapi.json", s.openapi)
	mux.HandleFunc("GET /api/events/{year}", s.events)
	mux.HandleFunc("GET /api/sessions/{year}/{round}", s.sessions)
	mux.HandleFunc("GET /api/drivers/{year}/{round}/{session}", s.drivers)
	mux.HandleFunc("GET /api/cache/stats", s.cacheStats)
	mux.HandleFunc("DELETE /api/cache/sculptures", s.clearCache)
	s.Server = httptest.NewServer(mux)
	return s
}

// AddTask registers a task. The next submission returns its id unless
// NextIDs says otherwise.
func (s *Server) AddTask(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	s.NextIDs = append(s.NextIDs, t.ID)
}

// Calls returns how often an endpoint was called. Keys: submit, status,
// result, cached, cancel, ws, clear.
func (s *Server) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *Server) Pings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings
}

func (s *Server) Cancelled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return ok && t.cancelled
}

// Submitted returns the decoded submission bodies
func (s *Server) Submitted() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.submitted...)
}

func (s *Server) SetDropConnections(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DropConnections = n
}

func (s *Server) submitSculpture(w http.ResponseWriter, r *http.Request) {
	var req model.SculptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["submit"]++
	s.submitted = append(s.submitted, req)
	if _, ok := s.Cached[req.CacheKey()]; ok {
		writeJSON(w, http.StatusOK, model.TaskResponse{
			TaskID: model.CachedTaskID, Status: model.TaskSuccess,
		})
		return
	}
	s.handOutID(w)
}

func (s *Server) submitCompare(w http.ResponseWriter, r *http.Request) {
	var req model.CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["submit"]++
	s.submitted = append(s.submitted, req)
	s.handOutID(w)
}

func (s *Server) handOutID(w http.ResponseWriter) {
	if len(s.NextIDs) == 0 {
		writeDetail(w, http.StatusInternalServerError, "broker unavailable")
		return
	}
	id := s.NextIDs[0]
	s.NextIDs = s.NextIDs[1:]
	writeJSON(w, http.StatusOK, model.TaskResponse{TaskID: id, Status: model.TaskPending})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["status"]++
	t, ok := s.tasks[id]
	if !ok || len(t.Statuses) == 0 {
		writeJSON(w, http.StatusOK, model.TaskStatus{TaskID: id, Status: model.TaskPending})
		return
	}
	idx := min(t.statusCalls, len(t.Statuses)-1)
	t.statusCalls++
	st := t.Statuses[idx]
	st.TaskID = id
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) result(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == model.CachedTaskID {
		s.calls["cached"]++
		q := r.URL.Query()
		year, _ := strconv.Atoi(q.Get("year"))
		round, _ := strconv.Atoi(q.Get("round"))
		key := model.SculptureRequest{
			Year: year, Round: round, Session: q.Get("session"), Driver: q.Get("driver"),
		}.CacheKey()
		res, ok := s.Cached[key]
		if !ok {
			writeDetail(w, http.StatusNotFound, "not cached")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"task_id": id, "status": model.TaskSuccess, "result": res,
		})
		return
	}
	s.calls["result"]++
	t, ok := s.tasks[id]
	if !ok || t.Result == nil {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Task %s not found or not complete", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": id, "status": model.TaskSuccess, "result": t.Result,
	})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["cancel"]++
	if t, ok := s.tasks[id]; ok {
		t.cancelled = true
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": "REVOKED"})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	h := s.Health
	s.mu.Unlock()
	code := http.StatusOK
	if !h.Healthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (s *Server) openapi(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	v := s.Version
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]string{"title": "F1 G-Force Sculpture API", "version": v},
	})
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid year")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.Events[year]
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("No events for %d", year))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "events": ev})
}

func (s *Server) sessions(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("year") + "/" + r.PathValue("round")
	s.mu.Lock()
	defer s.mu.Unlock()
	es, ok := s.Sessions[key]
	if !ok {
		writeDetail(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, es)
}

func (s *Server) drivers(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("year") + "/" + r.PathValue("round") + "/" + r.PathValue("session")
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.Drivers[key]
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "Session not available")
		return
	}
	w.Header().Set("X-Deprecated", "This endpoint loads session synchronously.")
	writeJSON(w, http.StatusOK, map[string]any{"drivers": d})
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.Stats
	st.SculptureCount = len(s.Cached)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) clearCache(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["clear"]++
	clear(s.Cached)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sculpture cache cleared"})
}

func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	s.mu.Lock()
	s.calls["ws"]++
	drop := s.DropConnections > 0
	if drop {
		s.DropConnections--
	}
	var script []model.StreamMessage
	if t, ok := s.tasks[id]; ok {
		script = append(script, t.Script...)
	}
	s.mu.Unlock()
	if drop {
		return
	}

	_ = c.WriteJSON(model.StreamMessage{
		Type: model.MTConnected, TaskID: id, Message: fmt.Sprintf("Connected to task %s", id),
	})
	for i := range script {
		msg := script[i]
		msg.TaskID = id
		if err := c.WriteJSON(msg); err != nil {
			return
		}
	}
	// consume keep-alive pings until the client goes away
	for {
		_ = c.SetReadDeadline(time.Now().Add(time.Minute))
		var msg model.StreamMessage
		if err := c.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == model.MTPing {
			s.mu.Lock()
			s.pings++
			s.mu.Unlock()
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

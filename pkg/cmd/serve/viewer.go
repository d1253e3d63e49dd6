package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/samber/lo"

	"github.com/mpapenbr/gforce-sculpture/log"
	"github.com/mpapenbr/gforce-sculpture/pkg/geometry"
	"github.com/mpapenbr/gforce-sculpture/pkg/layout"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/pkg/picking"
	"github.com/mpapenbr/gforce-sculpture/pkg/progress"
	"github.com/mpapenbr/gforce-sculpture/pkg/stats"
	"github.com/mpapenbr/gforce-sculpture/pkg/utils/broadcast"
)

var errBusy = errors.New("a job is already running")

type (
	// Runner resolves a request to a result, reporting progress views
	Runner func(
		ctx context.Context,
		req model.JobRequest,
		onView func(progress.View),
	) (*model.JobResult, error)

	sceneRequest struct {
		Year    int      `json:"year"`
		Round   int      `json:"round"`
		Session string   `json:"session"`
		Drivers []string `json:"drivers"`
	}

	sceneEntry struct {
		DriverCode string               `json:"driverCode"`
		Offset     float64              `json:"offset"`
		Label      *layout.Label        `json:"label"`
		Mesh       *geometry.MeshBundle `json:"mesh"`
	}

	sceneResponse struct {
		Entries []sceneEntry    `json:"entries"`
		Tooltip *picking.Result `json:"tooltip,omitempty"`
	}

	viewer struct {
		lay    *layout.Layout
		picker *picking.Index
		run    Runner
		views  chan progress.View
		bc     broadcast.Server[progress.View]
		l      *log.Logger

		mu        sync.Mutex
		busy      bool
		cancel    context.CancelFunc
		current   progress.View
		summaries []stats.DriverSummary
	}
)

func newViewer(run Runner) *viewer {
	v := &viewer{
		run:     run,
		views:   make(chan progress.View, 16),
		current: progress.Idle(),
		l:       log.Default().Named("viewer"),
	}
	v.picker = picking.New(picking.MeshSourceFunc(func() []*geometry.MeshBundle {
		return v.lay.Meshes()
	}))
	v.lay = layout.New(geometry.NewSynthesizer(),
		layout.WithTooltip(v.picker),
		layout.WithRemoveListener(func(e layout.RemoveEvent) {
			v.setSummaries(e.Remaining)
		}))
	v.bc = broadcast.NewServer[progress.View]("progress", v.views,
		broadcast.WithBufferSize[progress.View](8))
	return v
}

func (v *viewer) close() {
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.mu.Unlock()
	v.bc.Close()
	v.lay.Clear()
}

func (v *viewer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/scene", v.getScene)
	mux.HandleFunc("POST /api/scene", v.postScene)
	mux.HandleFunc("POST /api/scene/drivers", v.addDriver)
	mux.HandleFunc("DELETE /api/scene/{driver}", v.removeDriver)
	mux.HandleFunc("DELETE /api/scene", v.clearScene)
	mux.HandleFunc("DELETE /api/job", v.cancelJob)
	mux.HandleFunc("POST /api/pick", v.pick)
	mux.HandleFunc("POST /api/labels", v.labels)
	mux.HandleFunc("GET /api/stats", v.getStats)
	mux.HandleFunc("GET /api/progress", v.progressEvents)
	return mux
}

func (v *viewer) publish(view progress.View) {
	v.mu.Lock()
	v.current = view
	v.mu.Unlock()
	select {
	case v.views <- view:
	default:
		v.l.Debug("progress view dropped", log.String("title", view.Title))
	}
}

func (v *viewer) currentView() progress.View {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *viewer) isBusy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.busy
}

func (v *viewer) setSummaries(entries []*layout.Entry) {
	datasets := make([]*model.SculptureDataset, 0, len(entries))
	for _, e := range entries {
		datasets = append(datasets, e.Dataset)
	}
	s := stats.Summarize(datasets)
	v.mu.Lock()
	v.summaries = s
	v.mu.Unlock()
}

// startJob runs req in the background and applies the result to the layout
func (v *viewer) startJob(
	req model.JobRequest,
	apply func(ctx context.Context, res *model.JobResult) error,
) error {
	v.mu.Lock()
	if v.busy {
		v.mu.Unlock()
		return errBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	v.busy = true
	v.cancel = cancel
	v.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			v.mu.Lock()
			v.busy = false
			v.cancel = nil
			v.mu.Unlock()
		}()
		// the success view is held back until the result is part of the scene
		var done *progress.View
		res, err := v.run(ctx, req, func(view progress.View) {
			if view.Phase == progress.PhaseSuccess {
				done = &view
				return
			}
			v.publish(view)
		})
		if err != nil {
			v.l.Info("job failed", log.ErrorField(err))
			if cur := v.currentView(); !cur.Terminal() {
				v.publish(progress.Failed(cur, err))
			}
			return
		}
		if err := apply(ctx, res); err != nil {
			v.l.Warn("could not show result", log.ErrorField(err))
			v.publish(progress.Failed(v.currentView(), err))
			return
		}
		v.setSummaries(v.lay.Entries())
		if done == nil {
			done = lo.ToPtr(progress.Succeeded(v.currentView(), false))
		}
		v.publish(*done)
	}()
	return nil
}

func (v *viewer) getScene(w http.ResponseWriter, _ *http.Request) {
	entries := v.lay.Entries()
	resp := sceneResponse{Entries: make([]sceneEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, sceneEntry{
			DriverCode: e.DriverCode,
			Offset:     e.Offset,
			Label:      e.Label,
			Mesh:       e.Mesh,
		})
	}
	if t, ok := v.picker.Tooltip(); ok {
		resp.Tooltip = t
	}
	writeJSON(w, http.StatusOK, resp)
}

func (v *viewer) postScene(w http.ResponseWriter, r *http.Request) {
	var sr sceneRequest
	if err := json.NewDecoder(r.Body).Decode(&sr); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req model.JobRequest
	var apply func(ctx context.Context, res *model.JobResult) error
	if len(sr.Drivers) == 1 {
		single := model.SculptureRequest{
			Year: sr.Year, Round: sr.Round, Session: sr.Session, Driver: sr.Drivers[0],
		}.Normalize()
		req = single
		apply = func(_ context.Context, res *model.JobResult) error {
			_, err := v.lay.ShowSingle(res.Sculpture)
			return err
		}
	} else {
		req = model.CompareRequest{
			Year: sr.Year, Round: sr.Round, Session: sr.Session, DriverList: sr.Drivers,
		}.Normalize()
		apply = func(ctx context.Context, res *model.JobResult) error {
			_, err := v.lay.Layout(ctx, res.Datasets())
			return err
		}
	}
	v.submit(w, req, apply)
}

func (v *viewer) addDriver(w http.ResponseWriter, r *http.Request) {
	var req model.SculptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	v.submit(w, req.Normalize(), func(ctx context.Context, res *model.JobResult) error {
		_, err := v.lay.Add(ctx, res.Sculpture)
		return err
	})
}

func (v *viewer) submit(
	w http.ResponseWriter,
	req model.JobRequest,
	apply func(ctx context.Context, res *model.JobResult) error,
) {
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := v.startJob(req, apply); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"drivers": req.Drivers()})
}

func (v *viewer) removeDriver(w http.ResponseWriter, r *http.Request) {
	driver := r.PathValue("driver")
	if !v.lay.Remove(driver) {
		writeError(w, http.StatusNotFound, fmt.Errorf("driver %s not shown", driver))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (v *viewer) clearScene(w http.ResponseWriter, _ *http.Request) {
	v.lay.Clear()
	v.setSummaries(nil)
	w.WriteHeader(http.StatusNoContent)
}

func (v *viewer) cancelJob(w http.ResponseWriter, _ *http.Request) {
	v.mu.Lock()
	cancel := v.cancel
	v.mu.Unlock()
	if cancel == nil {
		writeError(w, http.StatusNotFound, errors.New("no job running"))
		return
	}
	cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (v *viewer) pick(w http.ResponseWriter, r *http.Request) {
	var ray picking.Ray
	if err := json.NewDecoder(r.Body).Decode(&ray); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, ok := v.picker.Pick(ray)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (v *viewer) labels(w http.ResponseWriter, r *http.Request) {
	var p layout.MatrixProjector
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, v.lay.ProjectLabels(p))
}

func (v *viewer) getStats(w http.ResponseWriter, _ *http.Request) {
	v.mu.Lock()
	s := v.summaries
	v.mu.Unlock()
	if s == nil {
		s = []stats.DriverSummary{}
	}
	writeJSON(w, http.StatusOK, s)
}

// progressEvents streams progress views as server-sent events. The current
// view is sent first.
func (v *viewer) progressEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := v.bc.Subscribe()
	defer v.bc.CancelSubscription(sub)

	send := func(view progress.View) bool {
		data, err := json.Marshal(view)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !send(v.currentView()) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case view, ok := <-sub:
			if !ok || !send(view) {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("writing response", log.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"detail": err.Error()})
}

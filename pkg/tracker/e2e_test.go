package tracker_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"

	"github.com/mpapenbr/gforce-sculpture/pkg/api"
	"github.com/mpapenbr/gforce-sculpture/pkg/geometry"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/pkg/stream/ws"
	"github.com/mpapenbr/gforce-sculpture/pkg/tracker"
	"github.com/mpapenbr/gforce-sculpture/testsupport/fakeserver"
	"github.com/mpapenbr/gforce-sculpture/testsupport/sampledata"
)

func TestEndToEnd_singleSculpture(t *testing.T) {
	srv := fakeserver.New()
	t.Cleanup(srv.Close)
	srv.AddTask(&fakeserver.Task{
		ID: "abc123",
		Script: []model.StreamMessage{
			{
				Type: model.MTProgress, Stage: model.StageLoadingSession, Progress: 10,
				Message: "Loading session data...",
			},
			{Type: model.MTProgress, Stage: model.StageExtractingTelemetry, Progress: 40},
			{Type: model.MTProgress, Stage: model.StageProcessingSculpture, Progress: 80},
			{
				Type:   model.MTSuccess,
				Result: &model.JobResult{Sculpture: sampledata.Dataset("VER", 500, 64)},
			},
		},
	})
	client, err := api.NewClient(srv.URL)
	assert.NilError(t, err)

	var percents []int
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := tracker.Run(ctx, client, ws.NewDialer(client.StreamURL),
		model.SculptureRequest{Year: 2024, Round: 7, Session: "q", Driver: "ver"},
		tracker.WithObserver(func(e tracker.Event) {
			if e.Kind == tracker.EventProgress {
				percents = append(percents, e.Progress.Percent)
			}
		}))
	assert.NilError(t, err)
	assert.DeepEqual(t, percents, []int{10, 40, 80})
	assert.Equal(t, srv.Calls("status"), 0)
	assert.Equal(t, srv.Calls("ws"), 1)

	b, err := geometry.NewSynthesizer().BuildSingle(res.Sculpture)
	assert.NilError(t, err)
	assert.Equal(t, b.Tube.SampleCount(), 500)
	assert.Equal(t, len(b.Tube.Colors), len(b.Tube.Positions))
}

func TestEndToEnd_pollingFallback(t *testing.T) {
	srv := fakeserver.New()
	t.Cleanup(srv.Close)
	srv.AddTask(&fakeserver.Task{
		ID: "poll1",
		Statuses: []model.TaskStatus{
			{Status: model.TaskSuccess},
		},
		Result: &model.JobResult{Sculpture: sampledata.Dataset("HAM", 50, 10)},
	})
	client, err := api.NewClient(srv.URL)
	assert.NilError(t, err)

	policy := tracker.Policy{
		ReconnectBase:   time.Millisecond,
		ReconnectFactor: 1.5,
		MaxReconnects:   5,
		PollInterval:    5 * time.Millisecond,
		MaxPolls:        60,
		PingInterval:    time.Minute,
	}
	// handshakes against an unknown path fail with 404
	unreachable := func(id string) string {
		return strings.Replace(client.StreamURL(id), "/ws/tasks/", "/ws/none/", 1)
	}
	tr := tracker.New(client, ws.NewDialer(unreachable), tracker.WithPolicy(policy))
	assert.NilError(t, tr.Submit(context.Background(),
		model.SculptureRequest{Year: 2024, Round: 1, Session: "R", Driver: "HAM"}))

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if tr.State().Terminal() {
			return poll.Success()
		}
		return poll.Continue("state %s", tr.State())
	}, poll.WithTimeout(10*time.Second))

	assert.Equal(t, tr.State(), tracker.StateSuccess)
	assert.Equal(t, srv.Calls("status"), 1)
	assert.Equal(t, srv.Calls("result"), 1)
}

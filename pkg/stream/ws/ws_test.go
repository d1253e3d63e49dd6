package ws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/gforce-sculpture/pkg/api"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/pkg/stream"
	"github.com/mpapenbr/gforce-sculpture/testsupport/fakeserver"
	"github.com/mpapenbr/gforce-sculpture/testsupport/sampledata"
)

func setup(t *testing.T) (*fakeserver.Server, *Dialer) {
	t.Helper()
	srv := fakeserver.New()
	t.Cleanup(srv.Close)
	c, err := api.NewClient(srv.URL)
	require.NoError(t, err)
	return srv, NewDialer(c.StreamURL)
}

func TestReceiveScript(t *testing.T) {
	srv, d := setup(t)
	srv.AddTask(&fakeserver.Task{
		ID: "abc123",
		Script: []model.StreamMessage{
			{Type: model.MTProgress, Stage: model.StageLoadingSession, Progress: 10},
			{
				Type:   model.MTSuccess,
				Result: &model.JobResult{Sculpture: sampledata.Dataset("VER", 20, 4)},
			},
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx, "abc123")
	require.NoError(t, err)
	defer conn.Close()

	want := []model.MessageType{model.MTConnected, model.MTProgress, model.MTSuccess}
	var got []*model.StreamMessage
	for range want {
		msg, err := conn.Receive(ctx)
		require.NoError(t, err)
		got = append(got, msg)
	}
	for i, msg := range got {
		assert.Equal(t, want[i], msg.Type)
		assert.Equal(t, "abc123", msg.TaskID)
	}
	assert.Equal(t, 10, got[1].Progress)
	require.NotNil(t, got[2].Result)
	assert.Len(t, got[2].Result.Sculpture.Vertices, 20)

	require.NoError(t, conn.Ping(ctx))
	assert.Eventually(t, func() bool { return srv.Pings() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestDroppedConnection(t *testing.T) {
	srv, d := setup(t)
	srv.SetDropConnections(1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx, "t1")
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Receive(ctx)
	assert.ErrorIs(t, err, model.ErrStream)
}

func TestCloseUnblocksReceive(t *testing.T) {
	_, d := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx, "idle")
	require.NoError(t, err)
	_, err = conn.Receive(ctx) // connected
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Receive(ctx)
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, conn.Close())
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, stream.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not return after Close")
	}
	// second close is a no-op
	assert.NoError(t, conn.Close())
}

func TestDialError(t *testing.T) {
	d := NewDialer(func(string) string { return "ws://127.0.0.1:1/ws/tasks/x" },
		WithHandshakeTimeout(time.Second))
	_, err := d.Dial(context.Background(), "x")
	assert.ErrorIs(t, err, model.ErrStream)
}

package natskv

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/gforce-sculpture/pkg/cache"
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/testsupport/sampledata"
)

// natsURL returns the server used for integration tests. The tests are
// skipped unless GFS_TEST_NATS_URL points to a JetStream enabled server.
func natsURL(t *testing.T) string {
	t.Helper()
	u := os.Getenv("GFS_TEST_NATS_URL")
	if u == "" {
		t.Skip("GFS_TEST_NATS_URL not set")
	}
	return u
}

func TestKVKey(t *testing.T) {
	assert.Equal(t, "2024.7.Q.VER", kvKey("2024:7:Q:VER"))
}

func TestRoundTrip(t *testing.T) {
	nc, err := nats.Connect(natsURL(t))
	require.NoError(t, err)
	defer nc.Close()

	ctx := context.Background()
	c, err := New(ctx, nc, WithBucket("gfs_test_"+uuid.NewString()[:8]))
	require.NoError(t, err)

	key := cache.Key(model.SculptureRequest{Year: 2024, Round: 7, Session: "Q", Driver: "VER"})
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	res := &model.JobResult{Sculpture: sampledata.Dataset("VER", 25, 5)}
	require.NoError(t, c.Put(ctx, key, res))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got.Sculpture)
	assert.Len(t, got.Sculpture.Vertices, 25)
	assert.Equal(t, res.Sculpture.Colors, got.Sculpture.Colors)

	require.NoError(t, c.Invalidate(ctx, key))
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

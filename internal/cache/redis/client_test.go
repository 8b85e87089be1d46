package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedPrediction struct {
	Label    int    `json:"label"`
	Category string `json:"category"`
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	c, err := NewClient(context.Background(), mr.Host(), port, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestPredictionRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	want := cachedPrediction{Label: 1, Category: "Real News"}
	require.NoError(t, c.SetPrediction(ctx, "run-1:abc", want, time.Minute))
	assert.True(t, mr.Exists("prediction:run-1:abc"))
	assert.Equal(t, time.Minute, mr.TTL("prediction:run-1:abc"))

	var got cachedPrediction
	hit, err := c.GetPrediction(ctx, "run-1:abc", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	hit, err = c.GetPrediction(ctx, "run-1:abc", &got)
	require.NoError(t, err)
	assert.False(t, hit, "expired entries are misses")
}

func TestGetPredictionMiss(t *testing.T) {
	c, _ := newTestClient(t)

	var got cachedPrediction
	hit, err := c.GetPrediction(context.Background(), "unknown", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, got)
}

func TestGetPredictionCorruptEntry(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, mr.Set("prediction:bad", "{not json"))

	var got cachedPrediction
	hit, err := c.GetPrediction(context.Background(), "bad", &got)
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestInvalidatePredictionsOnlyTouchesPredictions(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, c.SetPrediction(ctx, "run-1:"+strconv.Itoa(i), cachedPrediction{Label: i % 2}, time.Hour))
	}
	require.NoError(t, mr.Set("session:42", "keep"))

	removed, err := c.InvalidatePredictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, removed)
	assert.Equal(t, []string{"session:42"}, mr.Keys())

	removed, err = c.InvalidatePredictions(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSyncModelVersion(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	removed, err := c.SyncModelVersion(ctx, "run-1")
	require.NoError(t, err)
	assert.Zero(t, removed, "first start has nothing to drop")

	require.NoError(t, c.SetPrediction(ctx, "run-1:a", cachedPrediction{Label: 1}, time.Hour))
	require.NoError(t, c.SetPrediction(ctx, "run-1:b", cachedPrediction{Label: 0}, time.Hour))

	removed, err = c.SyncModelVersion(ctx, "run-1")
	require.NoError(t, err)
	assert.Zero(t, removed, "restart on the same model keeps the cache")

	removed, err = c.SyncModelVersion(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	served, err := mr.Get("model:served")
	require.NoError(t, err)
	assert.Equal(t, "run-2", served)
}

func TestPing(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	host := mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = NewClient(ctx, host, port, "", 0)
	assert.Error(t, err)
}

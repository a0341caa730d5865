package redis

import (
	"context"
	"math"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-rag-api/internal/application/pipeline"
	"fin-rag-api/internal/config"
)

// newMiniClient 连接进程内 miniredis
func newMiniClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	c, err := NewClient(context.Background(), &config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestGetOrLoadSafeFollowerSurvivesLeaderCancel(t *testing.T) {
	c, mr := newMiniClient(t)
	cache := NewCache(c)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	loader := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return map[string]string{"answer": "ok"}, nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := cache.GetOrLoadSafe(leaderCtx, "k", time.Minute, loader)
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		raw []byte
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		raw, _, err := cache.GetOrLoadSafe(context.Background(), "k", time.Minute, loader)
		follower <- outcome{raw: raw, err: err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case got := <-follower:
		require.NoError(t, got.err)
		assert.JSONEq(t, `{"answer":"ok"}`, string(got.raw))
	case <-time.After(2 * time.Second):
		t.Fatal("waiting caller did not return")
	}

	assert.EqualValues(t, 1, calls.Load())
	stored, err := mr.Get("k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"ok"}`, stored)
}

func TestGetOrLoadSafeHitSkipsLoader(t *testing.T) {
	c, mr := newMiniClient(t)
	require.NoError(t, mr.Set("k", `"cached"`))

	raw, hit, err := NewCache(c).GetOrLoadSafe(context.Background(), "k", time.Minute, func(context.Context) (any, error) {
		t.Fatal("loader must not run on hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, `"cached"`, string(raw))
}

func TestAnswerCacheUnencodableResultLoadsOnce(t *testing.T) {
	c, mr := newMiniClient(t)
	ac := NewAnswerCache(NewCache(c), time.Minute)
	key := pipeline.CacheKey("what was revenue growth")

	calls := 0
	res, hit, err := ac.GetOrLoad(context.Background(), key, func(context.Context) (*pipeline.AnswerResult, error) {
		calls++
		return &pipeline.AnswerResult{
			Query:               "what was revenue growth",
			Answer:              "a",
			RequiresCalculation: true,
			CalculationData: pipeline.CalculationData{
				"MSFT_2023": {
					Company: "MSFT",
					Year:    2023,
					Metrics: map[string][]pipeline.ExtractedNumber{
						"revenue": {{Value: math.Inf(1), OriginalText: "huge"}},
					},
				},
			},
		}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	require.NotNil(t, res)
	assert.Equal(t, "a", res.Answer)
	assert.Equal(t, 1, calls)
	assert.False(t, mr.Exists(answerKeyPrefix+key))
}

func TestAnswerCacheInvalidate(t *testing.T) {
	c, mr := newMiniClient(t)
	ac := NewAnswerCache(NewCache(c), time.Minute)
	key := pipeline.CacheKey("q")

	_, _, err := ac.GetOrLoad(context.Background(), key, func(context.Context) (*pipeline.AnswerResult, error) {
		return &pipeline.AnswerResult{Query: "q", Answer: "a"}, nil
	})
	require.NoError(t, err)
	require.NoError(t, mr.Set("other", "x"))

	n, err := ac.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, mr.Exists(answerKeyPrefix+key))
	assert.True(t, mr.Exists("other"))
}

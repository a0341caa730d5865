package redis

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-rag-api/internal/application/pipeline"
	"fin-rag-api/internal/application/query"
	"fin-rag-api/internal/application/retrieval"
	"fin-rag-api/internal/config"
)

// newTestClient 需要 FIN_RAG_TEST_REDIS_ADDR=host:port，否则跳过
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("FIN_RAG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FIN_RAG_TEST_REDIS_ADDR not set")
	}
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c, err := NewClient(context.Background(), &config.RedisConfig{Host: host, Port: port, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestIsNil(t *testing.T) {
	assert.True(t, IsNil(goredis.Nil))
	assert.False(t, IsNil(errors.New("x")))
	assert.False(t, IsNil(nil))
}

func TestBuildRateLimitKey(t *testing.T) {
	assert.Equal(t, "fin-rag:ratelimit:10.0.0.1:/v1/query/answer", BuildRateLimitKey("10.0.0.1", "/v1/query/answer"))
}

func TestDecodeAnswer(t *testing.T) {
	raw := []byte(`{"query":"q","answer":"a","sources":[{"chunk_id":"c1","content":"x","score":0.5,"company":"MSFT","year":2023,"chunk_index":0,"start_char":0,"end_char":1,"sub_query":"s"}],"cached":false}`)
	res, err := decodeAnswer(raw)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Answer)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "c1", res.Sources[0].ID)
	assert.Equal(t, "s", res.Sources[0].SubQuery)

	_, err = decodeAnswer([]byte("{"))
	assert.Error(t, err)
}

func TestLoadErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	var err error = &loadError{err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "boom", err.Error())
}

func TestAnswerCacheRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ac := NewAnswerCache(NewCache(c), time.Minute)
	key := pipeline.CacheKey("test " + uuid.NewString())
	t.Cleanup(func() { _ = NewCache(c).Delete(context.Background(), answerKeyPrefix+key) })

	calls := 0
	load := func(context.Context) (*pipeline.AnswerResult, error) {
		calls++
		return &pipeline.AnswerResult{
			Query:      "q",
			Answer:     "a",
			Decomposed: &query.DecomposedQuery{Type: query.TypeSimpleDirect},
			Sources:    []pipeline.RankedChunk{{Chunk: retrieval.Chunk{ID: "c1"}}},
		}, nil
	}

	first, hit, err := ac.GetOrLoad(context.Background(), key, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "a", first.Answer)

	second, hit, err := ac.GetOrLoad(context.Background(), key, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "c1", second.Sources[0].ID)
	assert.Equal(t, 1, calls)
}

func TestAnswerCacheLoadErrorNotCached(t *testing.T) {
	c := newTestClient(t)
	ac := NewAnswerCache(NewCache(c), time.Minute)
	key := pipeline.CacheKey("err " + uuid.NewString())

	boom := errors.New("generation failed")
	_, _, err := ac.GetOrLoad(context.Background(), key, func(context.Context) (*pipeline.AnswerResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewCache(c).Get(context.Background(), answerKeyPrefix+key)
	assert.True(t, IsNil(err))
}

func TestRateLimiterAllow(t *testing.T) {
	c := newTestClient(t)
	l := NewRateLimiter(c)
	key := BuildRateLimitKey(uuid.NewString(), "/test")
	t.Cleanup(func() { _ = c.Redis().Del(context.Background(), key).Err() })

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(context.Background(), key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(context.Background(), key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := l.Remaining(context.Background(), key, 3, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestAddr(t *testing.T) {
	assert.Equal(t, "localhost:6379", Addr(&config.RedisConfig{Host: "localhost", Port: 6379}))
	assert.Equal(t, "[::1]:6380", Addr(&config.RedisConfig{Host: "::1", Port: 6380}))
}

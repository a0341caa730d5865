package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fin-rag-api/internal/application/pipeline"
	"fin-rag-api/pkg/logger"
	"fin-rag-api/pkg/metrics"
)

const answerKeyPrefix = "fin-rag:"

// AnswerCache 以规范化问题为键缓存问答结果
type AnswerCache struct {
	cache *Cache
	ttl   time.Duration
}

var _ pipeline.AnswerCache = (*AnswerCache)(nil)

// NewAnswerCache 创建答案缓存，ttl 非正时默认 10 分钟
func NewAnswerCache(cache *Cache, ttl time.Duration) *AnswerCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AnswerCache{cache: cache, ttl: ttl}
}

// GetOrLoad Redis 不可用时直接调用 load，不影响问答
// 加载已经完成时不会再次调用 load
func (a *AnswerCache) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (*pipeline.AnswerResult, error)) (*pipeline.AnswerResult, bool, error) {
	raw, hit, err := a.cache.GetOrLoadSafe(ctx, answerKeyPrefix+key, a.ttl, func(ctx context.Context) (any, error) {
		res, err := load(ctx)
		if err != nil {
			return nil, &loadError{err: err}
		}
		return res, nil
	})
	if err != nil {
		var le *loadError
		if errors.As(err, &le) {
			metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
			return nil, false, le.err
		}
		var ue *UncacheableError
		if errors.As(err, &ue) {
			metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
			logger.Warn(ctx, "answer not cacheable, returning uncached result", "error", ue.Err.Error())
			if res, ok := ue.Value.(*pipeline.AnswerResult); ok {
				return res, false, nil
			}
			return nil, false, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "answer cache unavailable, bypassing", "error", err.Error())
		res, err := load(ctx)
		return res, false, err
	}

	if hit {
		metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
	}

	res, err := decodeAnswer(raw)
	if err != nil {
		return nil, false, err
	}
	return res, hit, nil
}

// Invalidate 清空全部已缓存答案，返回删除的键数
func (a *AnswerCache) Invalidate(ctx context.Context) (int, error) {
	return a.cache.InvalidatePattern(ctx, answerKeyPrefix+pipeline.CacheKey("")+"*")
}

// loadError 区分加载失败与 Redis 故障
type loadError struct{ err error }

func (e *loadError) Error() string { return e.err.Error() }

func (e *loadError) Unwrap() error { return e.err }

func decodeAnswer(raw []byte) (*pipeline.AnswerResult, error) {
	var res pipeline.AnswerResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to decode cached answer: %w", err)
	}
	return &res, nil
}

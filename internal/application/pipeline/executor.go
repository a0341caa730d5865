package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"fin-rag-api/internal/application/query"
	"fin-rag-api/internal/application/retrieval"
	apperrors "fin-rag-api/pkg/errors"
	"fin-rag-api/pkg/logger"
	"fin-rag-api/pkg/metrics"
	"fin-rag-api/pkg/tracer"
)

const (
	defaultTopK           = 5
	defaultMaxConcurrency = 4
	defaultSearchTimeout  = 10 * time.Second
)

// ExecutorOptions 检索执行参数
type ExecutorOptions struct {
	TopK           int
	MaxConcurrency int
	SearchTimeout  time.Duration
}

// Executor 并发执行子查询检索，结果按子查询顺序返回
type Executor struct {
	searcher Searcher
	opts     ExecutorOptions
}

// NewExecutor 创建检索执行器，非法参数使用默认值
func NewExecutor(searcher Searcher, opts ExecutorOptions) *Executor {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = defaultSearchTimeout
	}
	return &Executor{searcher: searcher, opts: opts}
}

// Retrieve 对每个可检索子查询执行一次检索
//
// 计算类子查询被跳过；没有命中的子查询返回空结果而不是错误。
// 父 context 被取消时，已完成的结果原样返回，同时返回 ctx.Err()。
func (e *Executor) Retrieve(ctx context.Context, dq *query.DecomposedQuery) ([]RetrievalResult, error) {
	if dq == nil {
		return nil, nil
	}
	n := dq.RetrievableCount()
	if n == 0 {
		return []RetrievalResult{}, nil
	}
	subs := make([]query.SubQuery, 0, n)
	for _, sq := range dq.SubQueries {
		if sq.Retrievable() {
			subs = append(subs, sq)
		}
	}
	if e.searcher == nil {
		return nil, apperrors.ErrRetrievalFailed.WithDetail("searcher not configured")
	}

	ctx, span := tracer.Start(ctx, "pipeline.Executor.Retrieve",
		trace.WithAttributes(attribute.Int("retrieval.sub_queries", len(subs))))
	defer span.End()

	slots := make([]*RetrievalResult, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxConcurrency)
	for i, sq := range subs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.searchOne(gctx, sq)
			if err != nil {
				return err
			}
			slots[i] = res
			return nil
		})
	}
	err := g.Wait()

	results := make([]RetrievalResult, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			results = append(results, *s)
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Warn(ctx, "retrieval cancelled",
			"completed", len(results),
			"total", len(subs),
		)
		span.RecordError(ctxErr)
		return results, ctxErr
	}
	if err != nil {
		span.RecordError(err)
		return results, err
	}
	return results, nil
}

func (e *Executor) searchOne(ctx context.Context, sq query.SubQuery) (*RetrievalResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.SearchTimeout)
	defer cancel()

	chunks, err := e.searcher.Search(callCtx, retrieval.SearchInput{
		Query: sq.Text,
		TopK:  e.opts.TopK,
		Filters: retrieval.Filters{
			Company: sq.Company,
			Year:    sq.Year,
			Section: sq.SectionHint,
		},
	})
	if err != nil {
		// 父 context 仍有效而单次调用超时，才算检索超时
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			metrics.RetrievalSearchTotal.WithLabelValues("timeout").Inc()
			return nil, fmt.Errorf("%w: %q after %s", ErrSearchTimeout, sq.Text, e.opts.SearchTimeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.RetrievalSearchTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeRetrievalFailed, fmt.Sprintf("search failed for %q", sq.Text))
	}

	status := "ok"
	if len(chunks) == 0 {
		status = "empty"
	}
	metrics.RetrievalSearchTotal.WithLabelValues(status).Inc()
	metrics.RetrievalChunksReturned.Observe(float64(len(chunks)))

	scores := make([]float64, len(chunks))
	for i, c := range chunks {
		scores[i] = c.Score
	}
	logger.Debug(ctx, "sub-query retrieved",
		"sub_query", sq.Text,
		"company", sq.Company,
		"year", sq.Year,
		"chunks", len(chunks),
	)
	return &RetrievalResult{SubQuery: sq, Chunks: chunks, Scores: scores}, nil
}

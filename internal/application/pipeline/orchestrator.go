package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fin-rag-api/internal/application/query"
	workflowprompt "fin-rag-api/internal/workflow/prompt"
	apperrors "fin-rag-api/pkg/errors"
	"fin-rag-api/pkg/logger"
	"fin-rag-api/pkg/metrics"
	"fin-rag-api/pkg/tracer"
)

const defaultGenerateTimeout = 60 * time.Second

// Config 流水线参数
type Config struct {
	TopK             int
	MaxConcurrency   int
	SearchTimeout    time.Duration
	GenerateTimeout  time.Duration
	MaxContextChunks int
	MaxChunkChars    int
}

// Option 可选依赖
type Option func(*Pipeline)

// WithAnswerCache 启用答案缓存
func WithAnswerCache(c AnswerCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithQueryLog 启用问答审计日志
func WithQueryLog(w QueryLogWriter) Option {
	return func(p *Pipeline) { p.queryLog = w }
}

// Pipeline 问答流水线：拆解 → 检索 → 数值抽取 → 上下文合成 → 生成
type Pipeline struct {
	decomposer      *query.Decomposer
	executor        *Executor
	synthesizer     *Synthesizer
	generator       Generator
	prompts         *workflowprompt.Registry
	generateTimeout time.Duration

	cache    AnswerCache
	queryLog QueryLogWriter
}

// New 创建流水线
func New(decomposer *query.Decomposer, searcher Searcher, generator Generator, cfg Config, opts ...Option) *Pipeline {
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = defaultGenerateTimeout
	}
	p := &Pipeline{
		decomposer: decomposer,
		executor: NewExecutor(searcher, ExecutorOptions{
			TopK:           cfg.TopK,
			MaxConcurrency: cfg.MaxConcurrency,
			SearchTimeout:  cfg.SearchTimeout,
		}),
		synthesizer:     NewSynthesizer(cfg.MaxContextChunks, cfg.MaxChunkChars),
		generator:       generator,
		prompts:         workflowprompt.NewRegistry(),
		generateTimeout: cfg.GenerateTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decompose 只做分类与拆解
func (p *Pipeline) Decompose(q string) (*query.DecomposedQuery, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperrors.ErrQueryEmpty
	}
	dq := p.decomposer.DecomposeQuery(q)
	if dq == nil || len(dq.SubQueries) == 0 {
		return nil, stageErr(StageDecompose, apperrors.New(apperrors.CodeDecompositionFailed, "query produced no sub-queries"))
	}
	return dq, nil
}

// Process 执行生成之前的全部阶段
func (p *Pipeline) Process(ctx context.Context, q string) (*ContextSynthesis, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperrors.ErrQueryEmpty
	}

	ctx, span := tracer.Start(ctx, "pipeline.Process")
	defer span.End()

	// 1) 分类与拆解
	start := time.Now()
	dq, err := p.Decompose(q)
	observeStage(StageDecompose, start)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("query.type", dq.Type.String()),
		attribute.Int("query.sub_queries", len(dq.SubQueries)),
	)
	metrics.PipelineSubQueries.WithLabelValues(dq.Type.String()).Observe(float64(len(dq.SubQueries)))
	logger.Info(ctx, "query decomposed",
		"query_type", dq.Type.String(),
		"sub_queries", len(dq.SubQueries),
		"requires_calculation", dq.RequiresCalculation,
	)

	// 2) 多步检索
	start = time.Now()
	results, err := p.executor.Retrieve(ctx, dq)
	observeStage(StageRetrieve, start)
	if err != nil {
		err = stageErrFor(StageRetrieve, dq, err)
		recordSpanError(span, err)
		return nil, err
	}
	logger.Info(ctx, "retrieval completed", "results", len(results))

	// 3) 计算素材
	var calc CalculationData
	if dq.RequiresCalculation {
		start = time.Now()
		calc = ExtractFinancialData(ctx, results, dq)
		observeStage(StageExtract, start)
		logger.Info(ctx, "financial data extracted", "groups", len(calc))
	}

	// 4) 上下文合成
	start = time.Now()
	ranked := Deduplicate(results)
	rendered := p.synthesizer.Render(dq, ranked)
	observeStage(StageSynthesize, start)
	logger.Info(ctx, "context synthesized", "unique_chunks", len(ranked))

	return &ContextSynthesis{
		OriginalQuery:       q,
		Decomposed:          dq,
		RetrievalResults:    results,
		RankedChunks:        ranked,
		SynthesizedContext:  rendered,
		RequiresCalculation: dq.RequiresCalculation,
		CalculationData:     calc,
	}, nil
}

// GenerateAnswer 基于合成上下文调用模型生成答案
func (p *Pipeline) GenerateAnswer(ctx context.Context, cs *ContextSynthesis) (string, error) {
	if cs == nil || cs.Decomposed == nil {
		return "", stageErr(StageGenerate, apperrors.ErrGenerationFailed.WithDetail("context is nil"))
	}
	if p.generator == nil {
		return "", stageErr(StageGenerate, apperrors.ErrGenerationFailed.WithDetail("generator not configured"))
	}

	ctx, span := tracer.Start(ctx, "pipeline.GenerateAnswer")
	defer span.End()
	start := time.Now()
	defer observeStage(StageGenerate, start)

	systemPrompt, userPrompt, err := p.prompts.Render(ctx, workflowprompt.PromptAnswerV1, map[string]any{
		"question":             cs.OriginalQuery,
		"context":              cs.SynthesizedContext,
		"requires_calculation": strconv.FormatBool(cs.RequiresCalculation),
		"query_type":           cs.Decomposed.Type.String(),
	})
	if err != nil {
		err = stageErrFor(StageGenerate, cs.Decomposed, apperrors.Wrap(err, apperrors.CodeGenerationFailed, "render prompt failed"))
		recordSpanError(span, err)
		return "", err
	}

	genCtx, cancel := context.WithTimeout(ctx, p.generateTimeout)
	defer cancel()

	answer, err := p.generator.Generate(genCtx, systemPrompt, userPrompt)
	if err != nil {
		if ctx.Err() == nil && errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrGenerateTimeout, p.generateTimeout)
		} else {
			err = apperrors.Wrap(err, apperrors.CodeGenerationFailed, "answer generation failed")
		}
		err = stageErrFor(StageGenerate, cs.Decomposed, err)
		recordSpanError(span, err)
		return "", err
	}
	return answer, nil
}

// Answer 端到端问答，失败时返回以 Error 开头的说明文本
func (p *Pipeline) Answer(ctx context.Context, q string) string {
	res, err := p.AnswerDetailed(ctx, q)
	if err == nil {
		return res.Answer
	}
	switch {
	case apperrors.HasCode(err, apperrors.CodeQueryEmpty):
		return "Error: query is required"
	case FailedStage(err) == StageGenerate:
		return fmt.Sprintf("Error generating answer: %v", rootCause(err))
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

// AnswerDetailed 端到端问答，返回结构化结果
func (p *Pipeline) AnswerDetailed(ctx context.Context, q string) (*AnswerResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperrors.ErrQueryEmpty
	}
	start := time.Now()

	var (
		res *AnswerResult
		hit bool
		err error
	)
	if p.cache != nil {
		res, hit, err = p.cache.GetOrLoad(ctx, CacheKey(q), func(ctx context.Context) (*AnswerResult, error) {
			return p.answer(ctx, q)
		})
	} else {
		res, err = p.answer(ctx, q)
	}

	if err != nil {
		p.finish(ctx, q, nil, err, false, time.Since(start))
		return nil, err
	}
	out := *res
	out.Cached = hit
	out.Duration = time.Since(start)
	p.finish(ctx, q, &out, nil, hit, out.Duration)
	return &out, nil
}

func (p *Pipeline) answer(ctx context.Context, q string) (*AnswerResult, error) {
	cs, err := p.Process(ctx, q)
	if err != nil {
		return nil, err
	}
	text, err := p.GenerateAnswer(ctx, cs)
	if err != nil {
		return nil, err
	}
	return &AnswerResult{
		Query:               cs.OriginalQuery,
		Answer:              text,
		Decomposed:          cs.Decomposed,
		Sources:             p.synthesizer.Top(cs.RankedChunks),
		RequiresCalculation: cs.RequiresCalculation,
		CalculationData:     cs.CalculationData,
	}, nil
}

// Examples 示例问题
func (p *Pipeline) Examples() []query.ExampleCategory {
	return query.Examples()
}

// CacheKey 规范化问题作为缓存键
func CacheKey(q string) string {
	return "answer:" + strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func (p *Pipeline) finish(ctx context.Context, q string, res *AnswerResult, err error, cached bool, d time.Duration) {
	status := "success"
	queryType := "unknown"
	dq := FailedQuery(err)
	if err != nil {
		status = "error"
		if dq != nil {
			queryType = dq.Type.String()
		}
		logger.Error(ctx, "query failed", err,
			"stage", string(FailedStage(err)),
			"query_type", queryType,
		)
	} else if res.Decomposed != nil {
		dq = res.Decomposed
		queryType = dq.Type.String()
		logger.Info(ctx, "query answered",
			"query_type", queryType,
			"cached", cached,
			"duration_ms", d.Milliseconds(),
		)
	}
	metrics.PipelineQueriesTotal.WithLabelValues(queryType, status).Inc()

	if p.queryLog == nil {
		return
	}
	rec := &QueryRecord{
		Query:     q,
		QueryType: query.QueryType(queryType),
		Status:    status,
		Cached:    cached,
		Duration:  d,
		RequestID: requestIDFromContext(ctx),
	}
	if dq != nil {
		rec.Companies = dq.Entities.Companies
		rec.Years = dq.Entities.Years
		rec.Metrics = dq.Entities.Metrics
		rec.SubQueryCount = len(dq.SubQueries)
	}
	if err != nil {
		rec.ErrorStage = string(FailedStage(err))
		rec.ErrorMessage = err.Error()
	} else {
		rec.ChunkCount = len(res.Sources)
		rec.AnswerCharCount = len([]rune(res.Answer))
	}
	if werr := p.queryLog.Record(ctx, rec); werr != nil {
		logger.Warn(ctx, "query log write failed", "error", werr.Error())
	}
}

func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return v
	}
	return ""
}

func observeStage(stage Stage, start time.Time) {
	metrics.PipelineStageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/google/wire"

	"fin-rag-api/internal/application/pipeline"
	"fin-rag-api/internal/application/query"
	"fin-rag-api/internal/application/retrieval"
	"fin-rag-api/internal/config"
	infraembedding "fin-rag-api/internal/infrastructure/embedding"
	"fin-rag-api/internal/infrastructure/llm"
	"fin-rag-api/internal/infrastructure/persistence/memory"
	"fin-rag-api/internal/infrastructure/persistence/milvus"
	"fin-rag-api/internal/infrastructure/persistence/postgres"
	"fin-rag-api/internal/infrastructure/persistence/redis"
	"fin-rag-api/internal/interfaces/http/handler"
	"fin-rag-api/internal/interfaces/http/middleware"
	"fin-rag-api/internal/interfaces/http/router"
	"fin-rag-api/internal/workflow/chain"
	"fin-rag-api/pkg/logger"
)

// VectorSet 向量检索与索引
var VectorSet = wire.NewSet(
	ProvideEmbedderOptional,
	ProvideMilvusClientOptional,
	ProvideVectorRepository,
	ProvideRetrievalEngine,
	ProvideRetrievalIndexer,
)

// LLMSet 答案生成
var LLMSet = wire.NewSet(
	ProvideLLMFactory,
	ProvideAnswerChain,
)

// StorageSet 可选的 Redis 与 PostgreSQL
var StorageSet = wire.NewSet(
	ProvideRedisClientOptional,
	ProvideAnswerCache,
	ProvidePostgresClientOptional,
	ProvideQueryLogRepository,
)

// PipelineSet 问答流水线
var PipelineSet = wire.NewSet(
	ProvideDecomposer,
	ProvidePipeline,
)

// HTTPSet HTTP 层
var HTTPSet = wire.NewSet(
	ProvideRateLimiter,
	ProvideHandlers,
	ProvideRouter,
)

// App 问答应用依赖容器，CLI 与 HTTP 服务共用
type App struct {
	Config      *config.Config
	Pipeline    *pipeline.Pipeline
	Engine      *retrieval.Engine
	Indexer     *retrieval.Indexer
	AnswerCache *redis.AnswerCache
}

// InvalidateAnswers 重新索引后清空答案缓存
func (a *App) InvalidateAnswers(ctx context.Context) {
	if a == nil || a.AnswerCache == nil {
		return
	}
	n, err := a.AnswerCache.Invalidate(ctx)
	if err != nil {
		logger.Warn(ctx, "failed to invalidate answer cache", "error", err.Error())
		return
	}
	logger.Info(ctx, "answer cache invalidated", "keys", n)
}

// Reset 清空向量库并使已缓存答案失效
func (a *App) Reset(ctx context.Context) error {
	if err := a.Indexer.Reset(ctx); err != nil {
		return err
	}
	a.InvalidateAnswers(ctx)
	return nil
}

// Preload 按 ingestion.preload_dir 索引文档
func (a *App) Preload(ctx context.Context) error {
	dir := a.Config.Ingestion.PreloadDir
	if dir == "" {
		return nil
	}
	report, err := a.Indexer.IndexDir(ctx, dir)
	if report != nil {
		logger.Info(ctx, "preload finished", "dir", dir, "files", report.Files, "chunks", report.Chunks, "failed", len(report.Failed))
	}
	if report != nil && report.Files > 0 {
		a.InvalidateAnswers(ctx)
	}
	return err
}

// Server HTTP 服务依赖
type Server struct {
	*App
	Router *router.Router
}

// ProvideEmbedderOptional Embedder 不可用时禁用向量检索/索引
func ProvideEmbedderOptional(ctx context.Context, cfg *config.Config) einoembedding.Embedder {
	embedder, err := infraembedding.New(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, vector features disabled", "error", err.Error())
		return nil
	}
	return embedder
}

// ProvideMilvusClientOptional 仅在 vector.backend=milvus 时连接，不可达时不阻塞启动
func ProvideMilvusClientOptional(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	if cfg.Vector.Backend != config.VectorBackendMilvus {
		return nil, func() {}, nil
	}
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus, cfg.Embedding.Dimension)
	if err != nil {
		logger.Warn(ctx, "milvus not available, vector features disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideVectorRepository 按配置选择向量存储后端
func ProvideVectorRepository(cfg *config.Config, milvusClient *milvus.Client) retrieval.VectorRepository {
	switch cfg.Vector.Backend {
	case config.VectorBackendMilvus:
		if milvusClient == nil {
			return nil
		}
		return milvus.NewRetrievalVectorRepository(milvus.NewRepository(milvusClient))
	default:
		return memory.NewVectorStore()
	}
}

// ProvideRetrievalEngine 检索引擎
func ProvideRetrievalEngine(embedder einoembedding.Embedder, vectorRepo retrieval.VectorRepository) *retrieval.Engine {
	return retrieval.NewEngine(embedder, vectorRepo)
}

// ProvideRetrievalIndexer 文档索引器
func ProvideRetrievalIndexer(cfg *config.Config, embedder einoembedding.Embedder, vectorRepo retrieval.VectorRepository) *retrieval.Indexer {
	chunker := retrieval.NewChunker(retrieval.ChunkerOptions{
		MaxChunkSize: cfg.Ingestion.MaxChunkSize,
		MinChunkSize: cfg.Ingestion.MinChunkSize,
		OverlapSize:  cfg.Ingestion.OverlapSize,
	})
	return retrieval.NewIndexer(embedder, vectorRepo, chunker, cfg.Embedding.BatchSize)
}

// ProvideLLMFactory LLM 工厂
func ProvideLLMFactory(cfg *config.Config) *llm.EinoFactory {
	return llm.NewEinoFactory(&cfg.LLM)
}

// ProvideAnswerChain 答案生成链，使用默认 provider 的模型与参数
func ProvideAnswerChain(factory *llm.EinoFactory) *chain.AnswerChain {
	opts := chain.AnswerChainOptions{Provider: factory.ResolveName("")}
	if p, ok := factory.Provider(""); ok {
		opts.Model = p.Model
		opts.MaxTokens = p.MaxTokens
		if p.Temperature > 0 {
			t := float32(p.Temperature)
			opts.Temperature = &t
		}
	}
	return chain.NewAnswerChain(factory, opts)
}

// ProvideDecomposer 查询分类与拆解
func ProvideDecomposer(cfg *config.Config) *query.Decomposer {
	classifier := query.NewClassifier(cfg.Retrieval.YearMin, cfg.Retrieval.YearMax)
	return query.NewDecomposer(classifier, cfg.Retrieval.Roster)
}

// ProvideRedisClientOptional 答案缓存或限流启用时连接 Redis，失败时降级
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Features.AnswerCache.Enabled && !cfg.Security.RateLimit.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, answer cache and rate limit disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideAnswerCache 答案缓存
func ProvideAnswerCache(cfg *config.Config, client *redis.Client) *redis.AnswerCache {
	if client == nil || !cfg.Features.AnswerCache.Enabled {
		return nil
	}
	return redis.NewAnswerCache(redis.NewCache(client), cfg.Features.AnswerCache.TTL)
}

// ProvideRateLimiter 限流器，返回接口类型以避免带类型的 nil
func ProvideRateLimiter(cfg *config.Config, client *redis.Client) middleware.RateLimiter {
	if client == nil || !cfg.Security.RateLimit.Enabled {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvidePostgresClientOptional 问答日志启用时连接 PostgreSQL 并迁移表结构
func ProvidePostgresClientOptional(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	if !cfg.Features.QueryLog.Enabled {
		return nil, func() {}, nil
	}
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Warn(ctx, "postgres not available, query log disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideQueryLogRepository 问答日志仓储
func ProvideQueryLogRepository(client *postgres.Client) *postgres.QueryLogRepository {
	if client == nil {
		return nil
	}
	return postgres.NewQueryLogRepository(client)
}

// ProvidePipeline 问答流水线
func ProvidePipeline(
	cfg *config.Config,
	decomposer *query.Decomposer,
	engine *retrieval.Engine,
	answerChain *chain.AnswerChain,
	cache *redis.AnswerCache,
	queryLog *postgres.QueryLogRepository,
) *pipeline.Pipeline {
	var opts []pipeline.Option
	if cache != nil {
		opts = append(opts, pipeline.WithAnswerCache(cache))
	}
	if queryLog != nil {
		opts = append(opts, pipeline.WithQueryLog(queryLog))
	}
	return pipeline.New(decomposer, engine, answerChain, pipeline.Config{
		TopK:             cfg.Retrieval.TopK,
		MaxConcurrency:   cfg.Retrieval.MaxConcurrency,
		SearchTimeout:    cfg.Retrieval.SearchTimeout,
		GenerateTimeout:  cfg.LLM.GenerateTimeout,
		MaxContextChunks: cfg.Retrieval.MaxContextChunks,
		MaxChunkChars:    cfg.Retrieval.MaxChunkChars,
	}, opts...)
}

// ProvideHandlers HTTP 处理器集合
func ProvideHandlers(
	cfg *config.Config,
	p *pipeline.Pipeline,
	engine *retrieval.Engine,
	vectorRepo retrieval.VectorRepository,
	milvusClient *milvus.Client,
	redisClient *redis.Client,
	pgClient *postgres.Client,
	queryLog *postgres.QueryLogRepository,
) router.Handlers {
	deps := []handler.Dependency{{Name: "vector", Checker: vectorHealth{engine: engine, repo: vectorRepo}, Required: true}}
	if milvusClient != nil {
		deps = append(deps, handler.Dependency{Name: "milvus", Checker: milvusClient, Required: true})
	}
	if redisClient != nil {
		deps = append(deps, handler.Dependency{Name: "redis", Checker: redisClient})
	}
	if pgClient != nil {
		deps = append(deps, handler.Dependency{Name: "postgres", Checker: pgClient})
	}

	h := router.Handlers{
		Health:    handler.NewHealthHandler(cfg.App.Version, deps...),
		Query:     handler.NewQueryHandler(p),
		Retrieval: handler.NewRetrievalHandler(engine, cfg.Retrieval.TopK),
		System:    handler.NewSystemHandler(cfg, engine),
	}
	if queryLog != nil {
		h.QueryLog = handler.NewQueryLogHandler(queryLog)
	}
	return h
}

// ProvideRouter HTTP 路由
func ProvideRouter(cfg *config.Config, handlers router.Handlers, limiter middleware.RateLimiter) *router.Router {
	return router.New(cfg, handlers, limiter)
}

// vectorHealth 向量检索是否可用
type vectorHealth struct {
	engine *retrieval.Engine
	repo   retrieval.VectorRepository
}

func (v vectorHealth) HealthCheck(ctx context.Context) error {
	if !v.engine.Enabled() {
		return retrieval.ErrVectorDisabled
	}
	return v.repo.EnsureCollection(ctx)
}

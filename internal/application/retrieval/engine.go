package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
)

const (
	defaultTopK = 5
	maxTopK     = 50
)

// Engine 查询向量化 + 带过滤的向量检索
type Engine struct {
	embedder embedding.Embedder
	vector   VectorRepository
}

// NewEngine 创建检索引擎
func NewEngine(embedder embedding.Embedder, vectorRepo VectorRepository) *Engine {
	return &Engine{
		embedder: embedder,
		vector:   vectorRepo,
	}
}

// Enabled 是否具备检索能力
func (e *Engine) Enabled() bool {
	return e != nil && e.embedder != nil && e.vector != nil
}

// Search 检索与查询最相关的片段，按相似度降序
func (e *Engine) Search(ctx context.Context, in SearchInput) ([]Chunk, error) {
	if !e.Enabled() {
		return nil, ErrVectorDisabled
	}
	if in.TopK <= 0 {
		in.TopK = defaultTopK
	}
	if in.TopK > maxTopK {
		in.TopK = maxTopK
	}

	// 1) 查询向量化
	emb, err := embedQuery(ctx, e.embedder, in.Query)
	if err != nil {
		return nil, err
	}

	// 2) 向量召回（过滤条件下推到向量库）
	results, err := e.vector.SearchChunks(ctx, &VectorSearchParams{
		QueryVector: emb,
		TopK:        in.TopK,
		Filters:     in.Filters,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Chunk, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		ch := r.Chunk
		ch.Score = float64(r.Score)
		out = append(out, ch)
	}
	return out, nil
}

// Stats 返回向量集合统计
func (e *Engine) Stats(ctx context.Context) (*CollectionStats, error) {
	if e == nil || e.vector == nil {
		return nil, ErrVectorDisabled
	}
	return e.vector.Stats(ctx)
}

func embedQuery(ctx context.Context, embedder embedding.Embedder, query string) ([]float32, error) {
	if embedder == nil {
		return nil, ErrVectorDisabled
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	v64, err := embedder.EmbedStrings(ctx, []string{q})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(v64) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return toFloat32(v64[0]), nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, 0, len(vec))
	for _, x := range vec {
		out = append(out, float32(x))
	}
	return out
}

package retrieval

import "context"

// VectorRepository 定义应用层对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（Milvus 或内存）。
type VectorRepository interface {
	EnsureCollection(ctx context.Context) error
	SearchChunks(ctx context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error)
	// UpsertChunks 按 chunk_id 幂等写入
	UpsertChunks(ctx context.Context, chunks []*VectorChunk) error
	DeleteBySource(ctx context.Context, sourceFile string) error
	// Reset 清空全部片段，完成后集合仍可写入
	Reset(ctx context.Context) error
	Stats(ctx context.Context) (*CollectionStats, error)
}

// VectorSearchParams 向量检索参数
type VectorSearchParams struct {
	QueryVector []float32
	TopK        int
	Filters     Filters
}

// VectorSearchResult 向量检索结果，Score 为余弦相似度
type VectorSearchResult struct {
	Chunk Chunk
	Score float32
}

// VectorChunk 待写入的片段及其向量
type VectorChunk struct {
	Chunk  Chunk
	Vector []float32
}

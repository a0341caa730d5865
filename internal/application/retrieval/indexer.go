package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/embedding"

	"fin-rag-api/pkg/logger"
	"fin-rag-api/pkg/metrics"
)

const defaultEmbeddingBatch = 32

// Indexer 片段向量化与入库
type Indexer struct {
	embedder embedding.Embedder
	vector   VectorRepository
	chunker  *Chunker

	embeddingBatchSize int
}

// NewIndexer 创建索引器
func NewIndexer(embedder embedding.Embedder, vectorRepo VectorRepository, chunker *Chunker, embeddingBatchSize int) *Indexer {
	bs := embeddingBatchSize
	if bs <= 0 {
		bs = defaultEmbeddingBatch
	}
	if chunker == nil {
		chunker = NewChunker(ChunkerOptions{})
	}
	return &Indexer{
		embedder:           embedder,
		vector:             vectorRepo,
		chunker:            chunker,
		embeddingBatchSize: bs,
	}
}

// Enabled 是否具备索引能力
func (i *Indexer) Enabled() bool {
	return i != nil && i.embedder != nil && i.vector != nil
}

// IndexDocument 切分并写入一份文档；先删除同源旧片段，避免残留
func (i *Indexer) IndexDocument(ctx context.Context, sourceFile, content string) (int, error) {
	if strings.TrimSpace(sourceFile) == "" {
		return 0, fmt.Errorf("source_file is required")
	}
	if !i.Enabled() {
		return 0, ErrVectorDisabled
	}
	if err := i.vector.EnsureCollection(ctx); err != nil {
		return 0, err
	}
	if err := i.vector.DeleteBySource(ctx, sourceFile); err != nil {
		return 0, err
	}

	chunks := i.chunker.ChunkDocument(sourceFile, content)
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := i.IndexChunks(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// IndexReport 目录索引结果
type IndexReport struct {
	Files  int      `json:"files"`
	Chunks int      `json:"chunks"`
	Failed []string `json:"failed,omitempty"`
}

// IndexDir 索引目录下全部 .txt 文件（递归，按路径排序）
// 单个文件失败不中断，错误合并返回
func (i *Indexer) IndexDir(ctx context.Context, dir string) (*IndexReport, error) {
	if !i.Enabled() {
		return nil, ErrVectorDisabled
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".txt") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	report := &IndexReport{}
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			report.Failed = append(report.Failed, path)
			errs = append(errs, err)
			continue
		}
		n, err := i.IndexDocument(ctx, filepath.Base(path), string(raw))
		if err != nil {
			logger.Warn(ctx, "failed to index document", "file", path, "error", err.Error())
			report.Failed = append(report.Failed, path)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		report.Files++
		report.Chunks += n
		logger.Info(ctx, "document indexed", "file", path, "chunks", n)
	}
	return report, errors.Join(errs...)
}

// Reset 清空向量库中的全部片段，不需要 Embedder
func (i *Indexer) Reset(ctx context.Context) error {
	if i == nil || i.vector == nil {
		return ErrVectorDisabled
	}
	if err := i.vector.Reset(ctx); err != nil {
		return fmt.Errorf("reset vector store: %w", err)
	}
	logger.Info(ctx, "vector store reset")
	return nil
}

// IndexChunks 向量化并按 chunk_id 幂等写入
func (i *Indexer) IndexChunks(ctx context.Context, chunks []Chunk) error {
	if !i.Enabled() {
		return ErrVectorDisabled
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := i.vector.EnsureCollection(ctx); err != nil {
		return err
	}

	texts := make([]string, 0, len(chunks))
	for idx, ch := range chunks {
		if strings.TrimSpace(ch.ID) == "" {
			return fmt.Errorf("chunk %d: chunk_id is required", idx)
		}
		texts = append(texts, ch.Content)
	}

	vectors, err := i.embedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(chunks))
	}

	rows := make([]*VectorChunk, 0, len(chunks))
	for idx := range chunks {
		rows = append(rows, &VectorChunk{Chunk: chunks[idx], Vector: vectors[idx]})
	}
	if err := i.vector.UpsertChunks(ctx, rows); err != nil {
		return err
	}

	for _, ch := range chunks {
		metrics.IngestedChunksTotal.WithLabelValues(ch.Company).Inc()
	}
	return nil
}

func (i *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if i == nil || i.embedder == nil {
		return nil, ErrVectorDisabled
	}
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += i.embeddingBatchSize {
		end := start + i.embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		v64, err := i.embedder.EmbedStrings(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		for _, vec := range v64 {
			out = append(out, toFloat32(vec))
		}
	}
	return out, nil
}

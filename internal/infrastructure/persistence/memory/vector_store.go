// Package memory 提供进程内向量存储，用于本地开发与测试
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"fin-rag-api/internal/application/retrieval"
)

const collectionName = "filing_chunks"

type row struct {
	chunk  retrieval.Chunk
	vector []float32
	seq    int64
}

// VectorStore 内存向量存储，余弦相似度暴力检索
type VectorStore struct {
	mu      sync.RWMutex
	rows    map[string]*row     // chunk_id -> row
	sources map[string][]string // source_file -> chunk_ids
	seq     int64
}

var _ retrieval.VectorRepository = (*VectorStore)(nil)

// NewVectorStore 创建内存向量存储
func NewVectorStore() *VectorStore {
	return &VectorStore{
		rows:    make(map[string]*row),
		sources: make(map[string][]string),
	}
}

// EnsureCollection 内存实现无需建表
func (s *VectorStore) EnsureCollection(context.Context) error { return nil }

// UpsertChunks 按 chunk_id 覆盖写入
func (s *VectorStore) UpsertChunks(ctx context.Context, chunks []*retrieval.VectorChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if c == nil {
			continue
		}
		id := c.Chunk.ID
		if old, ok := s.rows[id]; ok {
			if old.chunk.SourceFile != c.Chunk.SourceFile {
				s.unlinkSource(old.chunk.SourceFile, id)
				s.sources[c.Chunk.SourceFile] = append(s.sources[c.Chunk.SourceFile], id)
			}
			old.chunk = c.Chunk
			old.vector = append([]float32(nil), c.Vector...)
			continue
		}
		s.seq++
		s.rows[id] = &row{chunk: c.Chunk, vector: append([]float32(nil), c.Vector...), seq: s.seq}
		s.sources[c.Chunk.SourceFile] = append(s.sources[c.Chunk.SourceFile], id)
	}
	return nil
}

// Reset 清空全部片段
func (s *VectorStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[string]*row)
	s.sources = make(map[string][]string)
	return nil
}

// SearchChunks 过滤后按余弦相似度降序返回 TopK；同分按写入顺序
func (s *VectorStore) SearchChunks(ctx context.Context, params *retrieval.VectorSearchParams) ([]*retrieval.VectorSearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		r     *row
		score float64
	}
	results := make([]scored, 0, len(s.rows))
	for _, r := range s.rows {
		if !matches(r.chunk, params.Filters) {
			continue
		}
		results = append(results, scored{r: r, score: cosineSimilarity(params.QueryVector, r.vector)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].r.seq < results[j].r.seq
	})
	if params.TopK > 0 && len(results) > params.TopK {
		results = results[:params.TopK]
	}

	out := make([]*retrieval.VectorSearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, &retrieval.VectorSearchResult{Chunk: r.r.chunk, Score: float32(r.score)})
	}
	return out, nil
}

// DeleteBySource 删除某个源文件的所有片段
func (s *VectorStore) DeleteBySource(_ context.Context, sourceFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.sources[sourceFile] {
		delete(s.rows, id)
	}
	delete(s.sources, sourceFile)
	return nil
}

// Stats 统计公司/年份/章节分布
func (s *VectorStore) Stats(context.Context) (*retrieval.CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &retrieval.CollectionStats{
		Backend:             "memory",
		Collection:          collectionName,
		TotalChunks:         int64(len(s.rows)),
		CompanyDistribution: make(map[string]int),
		YearDistribution:    make(map[int]int),
		SectionDistribution: make(map[string]int),
	}
	for _, r := range s.rows {
		st.CompanyDistribution[r.chunk.Company]++
		st.YearDistribution[r.chunk.Year]++
		if r.chunk.Section != "" {
			st.SectionDistribution[r.chunk.Section]++
		}
	}
	return st, nil
}

func (s *VectorStore) unlinkSource(source, id string) {
	ids := s.sources[source]
	for i, v := range ids {
		if v == id {
			s.sources[source] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.sources[source]) == 0 {
		delete(s.sources, source)
	}
}

func matches(c retrieval.Chunk, f retrieval.Filters) bool {
	if f.Empty() {
		return true
	}
	if f.Company != "" && c.Company != f.Company {
		return false
	}
	if f.Year != 0 && c.Year != f.Year {
		return false
	}
	if f.Section != "" && c.Section != f.Section {
		return false
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

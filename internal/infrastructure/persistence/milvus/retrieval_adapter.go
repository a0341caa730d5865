package milvus

import (
	"context"

	"fin-rag-api/internal/application/retrieval"
)

// RetrievalVectorRepository 将 Milvus 仓储适配为检索层的 VectorRepository
type RetrievalVectorRepository struct {
	repo *Repository
}

// NewRetrievalVectorRepository 创建适配器
func NewRetrievalVectorRepository(repo *Repository) *RetrievalVectorRepository {
	return &RetrievalVectorRepository{repo: repo}
}

var _ retrieval.VectorRepository = (*RetrievalVectorRepository)(nil)

func (r *RetrievalVectorRepository) EnsureCollection(ctx context.Context) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.EnsureFilingChunksCollection(ctx)
}

func (r *RetrievalVectorRepository) SearchChunks(ctx context.Context, params *retrieval.VectorSearchParams) ([]*retrieval.VectorSearchResult, error) {
	if r == nil || r.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	if params == nil {
		return nil, nil
	}

	out, err := r.repo.SearchChunks(ctx, &SearchParams{
		QueryVector: params.QueryVector,
		TopK:        params.TopK,
		Company:     params.Filters.Company,
		Year:        int64(params.Filters.Year),
		Section:     params.Filters.Section,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*retrieval.VectorSearchResult, 0, len(out))
	for _, v := range out {
		if v == nil {
			continue
		}
		results = append(results, &retrieval.VectorSearchResult{
			Chunk: rowToChunk(v.Row),
			Score: v.Score,
		})
	}
	return results, nil
}

func (r *RetrievalVectorRepository) UpsertChunks(ctx context.Context, chunks []*retrieval.VectorChunk) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	rows := make([]*ChunkRow, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		rows = append(rows, chunkToRow(c))
	}
	return r.repo.UpsertChunks(ctx, rows)
}

func (r *RetrievalVectorRepository) DeleteBySource(ctx context.Context, sourceFile string) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.DeleteBySource(ctx, sourceFile)
}

// Reset 删除并重建集合
func (r *RetrievalVectorRepository) Reset(ctx context.Context) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	if err := r.repo.DropFilingChunksCollection(ctx); err != nil {
		return err
	}
	return r.repo.EnsureFilingChunksCollection(ctx)
}

func (r *RetrievalVectorRepository) Stats(ctx context.Context) (*retrieval.CollectionStats, error) {
	if r == nil || r.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	d, err := r.repo.Distribution(ctx)
	if err != nil {
		return nil, err
	}
	return &retrieval.CollectionStats{
		Backend:             "milvus",
		Collection:          r.repo.client.CollectionName(CollectionFilingChunks),
		TotalChunks:         d.RowCount,
		CompanyDistribution: d.Companies,
		YearDistribution:    d.Years,
		SectionDistribution: d.Sections,
		DistributionSampled: d.Sampled,
	}, nil
}

func chunkToRow(c *retrieval.VectorChunk) *ChunkRow {
	ch := c.Chunk
	return &ChunkRow{
		ID:         ch.ID,
		Vector:     c.Vector,
		Company:    ch.Company,
		Year:       int64(ch.Year),
		Section:    ch.Section,
		SourceFile: ch.SourceFile,
		ChunkIndex: int64(ch.ChunkIndex),
		StartChar:  int64(ch.StartChar),
		EndChar:    int64(ch.EndChar),
		Content:    ch.Content,
		Metadata:   retrieval.EncodeMetadata(ch.Metadata),
	}
}

func rowToChunk(row ChunkRow) retrieval.Chunk {
	return retrieval.Chunk{
		ID:         row.ID,
		Content:    row.Content,
		Company:    row.Company,
		Year:       int(row.Year),
		Section:    row.Section,
		SourceFile: row.SourceFile,
		ChunkIndex: int(row.ChunkIndex),
		StartChar:  int(row.StartChar),
		EndChar:    int(row.EndChar),
		Metadata:   retrieval.DecodeMetadata(row.Metadata),
	}
}

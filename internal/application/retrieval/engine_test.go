package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder 以文本长度生成二维向量，并记录每批大小
type fakeEmbedder struct {
	mu      sync.Mutex
	batches []int
	err     error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.mu.Lock()
	f.batches = append(f.batches, len(texts))
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		out = append(out, []float64{float64(len(t)), 1})
	}
	return out, nil
}

type fakeVectorRepo struct {
	ensured     int
	deleted     []string
	upserted    []*VectorChunk
	lastParams  *VectorSearchParams
	results     []*VectorSearchResult
	searchErr   error
	upsertErr   error
	statsResult *CollectionStats
	resets      int
	resetErr    error
}

func (f *fakeVectorRepo) EnsureCollection(context.Context) error {
	f.ensured++
	return nil
}

func (f *fakeVectorRepo) SearchChunks(_ context.Context, p *VectorSearchParams) ([]*VectorSearchResult, error) {
	f.lastParams = p
	return f.results, f.searchErr
}

func (f *fakeVectorRepo) UpsertChunks(_ context.Context, chunks []*VectorChunk) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeVectorRepo) DeleteBySource(_ context.Context, source string) error {
	f.deleted = append(f.deleted, source)
	return nil
}

func (f *fakeVectorRepo) Reset(context.Context) error {
	f.resets++
	f.upserted = nil
	return f.resetErr
}

func (f *fakeVectorRepo) Stats(context.Context) (*CollectionStats, error) {
	return f.statsResult, nil
}

func TestEngineSearch(t *testing.T) {
	repo := &fakeVectorRepo{results: []*VectorSearchResult{
		{Chunk: Chunk{ID: "a", Content: "x", Company: "MSFT", Year: 2023}, Score: 0.75},
		nil,
	}}
	e := NewEngine(&fakeEmbedder{}, repo)

	got, err := e.Search(context.Background(), SearchInput{
		Query:   "  MSFT revenue 2023 ",
		Filters: Filters{Company: "MSFT", Year: 2023},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.InDelta(t, 0.75, got[0].Score, 1e-6)

	require.NotNil(t, repo.lastParams)
	assert.Equal(t, 5, repo.lastParams.TopK)
	assert.Equal(t, Filters{Company: "MSFT", Year: 2023}, repo.lastParams.Filters)
	assert.Equal(t, []float32{float32(len("MSFT revenue 2023")), 1}, repo.lastParams.QueryVector)
}

func TestEngineSearchClampsTopK(t *testing.T) {
	repo := &fakeVectorRepo{}
	e := NewEngine(&fakeEmbedder{}, repo)

	_, err := e.Search(context.Background(), SearchInput{Query: "q", TopK: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, repo.lastParams.TopK)
}

func TestEngineSearchErrors(t *testing.T) {
	_, err := (&Engine{}).Search(context.Background(), SearchInput{Query: "q"})
	assert.ErrorIs(t, err, ErrVectorDisabled)

	e := NewEngine(&fakeEmbedder{}, &fakeVectorRepo{})
	_, err = e.Search(context.Background(), SearchInput{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	boom := errors.New("embedding backend down")
	e = NewEngine(&fakeEmbedder{err: boom}, &fakeVectorRepo{})
	_, err = e.Search(context.Background(), SearchInput{Query: "q"})
	assert.ErrorIs(t, err, boom)

	e = NewEngine(&fakeEmbedder{}, &fakeVectorRepo{searchErr: boom})
	_, err = e.Search(context.Background(), SearchInput{Query: "q"})
	assert.ErrorIs(t, err, boom)
}

func TestIndexerIndexChunksBatches(t *testing.T) {
	emb := &fakeEmbedder{}
	repo := &fakeVectorRepo{}
	idx := NewIndexer(emb, repo, nil, 2)

	chunks := []Chunk{
		{ID: "1", Content: "a", Company: "MSFT"},
		{ID: "2", Content: "bb", Company: "MSFT"},
		{ID: "3", Content: "ccc", Company: "NVDA"},
	}
	require.NoError(t, idx.IndexChunks(context.Background(), chunks))

	assert.Equal(t, []int{2, 1}, emb.batches)
	require.Len(t, repo.upserted, 3)
	assert.Equal(t, "3", repo.upserted[2].Chunk.ID)
	assert.Equal(t, []float32{3, 1}, repo.upserted[2].Vector)
}

func TestIndexerRejectsMissingID(t *testing.T) {
	idx := NewIndexer(&fakeEmbedder{}, &fakeVectorRepo{}, nil, 0)
	err := idx.IndexChunks(context.Background(), []Chunk{{Content: "x"}})
	assert.Error(t, err)
}

func TestIndexerIndexDocument(t *testing.T) {
	repo := &fakeVectorRepo{}
	idx := NewIndexer(&fakeEmbedder{}, repo, NewChunker(ChunkerOptions{MaxChunkSize: 300, MinChunkSize: 50}), 0)

	text := strings.Repeat("Item 7. Management's Discussion and Analysis shows revenue growth. ", 3)
	n, err := idx.IndexDocument(context.Background(), "MSFT_10K_2023.txt", text)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"MSFT_10K_2023.txt"}, repo.deleted)
	require.Len(t, repo.upserted, 1)
	assert.Equal(t, "md_a", repo.upserted[0].Chunk.Section)
	assert.Equal(t, "MSFT", repo.upserted[0].Chunk.Company)

	_, err = idx.IndexDocument(context.Background(), " ", text)
	assert.Error(t, err)

	_, err = NewIndexer(nil, repo, nil, 0).IndexDocument(context.Background(), "a", text)
	assert.ErrorIs(t, err, ErrVectorDisabled)
}

func TestIndexerIndexDir(t *testing.T) {
	dir := t.TempDir()
	text := strings.Repeat("Item 1A. Risk Factors describe supply constraints and demand shifts. ", 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "NVDA_10K_2024.txt"), []byte(text), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "GOOGL_10K_2022.txt"), []byte(text), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte(text), 0o644))

	repo := &fakeVectorRepo{}
	idx := NewIndexer(&fakeEmbedder{}, repo, NewChunker(ChunkerOptions{MaxChunkSize: 300, MinChunkSize: 50}), 0)

	report, err := idx.IndexDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 2, report.Chunks)
	assert.Empty(t, report.Failed)
	assert.Equal(t, []string{"NVDA_10K_2024.txt", "GOOGL_10K_2022.txt"}, repo.deleted)
}

func TestIndexerIndexDirContinuesOnFailure(t *testing.T) {
	dir := t.TempDir()
	text := strings.Repeat("Item 7. Management's Discussion and Analysis shows revenue growth. ", 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MSFT_10K_2023.txt"), []byte(text), 0o644))

	boom := errors.New("embedding down")
	idx := NewIndexer(&fakeEmbedder{err: boom}, &fakeVectorRepo{}, NewChunker(ChunkerOptions{MaxChunkSize: 300, MinChunkSize: 50}), 0)
	report, err := idx.IndexDir(context.Background(), dir)
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, report)
	assert.Len(t, report.Failed, 1)
	assert.Zero(t, report.Files)

	_, err = idx.IndexDir(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestIndexerReset(t *testing.T) {
	repo := &fakeVectorRepo{}
	idx := NewIndexer(nil, repo, nil, 0)
	require.NoError(t, idx.Reset(context.Background()))
	assert.Equal(t, 1, repo.resets)

	repo.resetErr = errors.New("drop failed")
	assert.ErrorIs(t, idx.Reset(context.Background()), repo.resetErr)

	assert.ErrorIs(t, NewIndexer(&fakeEmbedder{}, nil, nil, 0).Reset(context.Background()), ErrVectorDisabled)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-rag-api/internal/application/pipeline"
	"fin-rag-api/internal/application/query"
	"fin-rag-api/internal/application/retrieval"
	"fin-rag-api/internal/config"
	"fin-rag-api/internal/domain/entity"
	"fin-rag-api/internal/domain/repository"
	apperrors "fin-rag-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQueryService struct {
	result *pipeline.AnswerResult
	err    error
	got    string
}

func (f *fakeQueryService) AnswerDetailed(_ context.Context, q string) (*pipeline.AnswerResult, error) {
	f.got = q
	return f.result, f.err
}

func (f *fakeQueryService) Decompose(q string) (*query.DecomposedQuery, error) {
	return query.NewDecomposer(nil, nil).DecomposeQuery(q), nil
}

func (f *fakeQueryService) Examples() []query.ExampleCategory { return query.Examples() }

type fakeSearcher struct {
	in     retrieval.SearchInput
	chunks []retrieval.Chunk
	err    error
}

func (f *fakeSearcher) Search(_ context.Context, in retrieval.SearchInput) ([]retrieval.Chunk, error) {
	f.in = in
	return f.chunks, f.err
}

type fakeStats struct {
	stats *retrieval.CollectionStats
	err   error
}

func (f *fakeStats) Stats(context.Context) (*retrieval.CollectionStats, error) { return f.stats, f.err }

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

type fakeQueryLogRepo struct {
	logs   []*entity.QueryLog
	filter *repository.QueryLogFilter
	since  time.Time
}

func (f *fakeQueryLogRepo) Create(_ context.Context, log *entity.QueryLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeQueryLogRepo) GetByID(_ context.Context, id string) (*entity.QueryLog, error) {
	for _, l := range f.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeQueryLogRepo) List(_ context.Context, filter *repository.QueryLogFilter, p repository.Pagination) (*repository.PagedResult[*entity.QueryLog], error) {
	f.filter = filter
	return repository.NewPagedResult(f.logs, int64(len(f.logs)), p), nil
}

func (f *fakeQueryLogRepo) StatsByType(_ context.Context, since time.Time) ([]repository.QueryLogStats, error) {
	f.since = since
	return nil, nil
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		ErrorCode string `json:"error_code"`
		Stage     string `json:"stage"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func queryRouter(svc QueryService) *gin.Engine {
	r := gin.New()
	h := NewQueryHandler(svc)
	r.POST("/answer", h.Answer)
	r.POST("/decompose", h.Decompose)
	r.GET("/examples", h.Examples)
	return r
}

func TestAnswerSuccess(t *testing.T) {
	svc := &fakeQueryService{result: &pipeline.AnswerResult{
		Query:      "What was NVIDIA's revenue in 2023?",
		Answer:     "$26.97 billion",
		Decomposed: &query.DecomposedQuery{Type: query.TypeSimpleDirect},
		Sources: []pipeline.RankedChunk{
			{Chunk: retrieval.Chunk{ID: "c1", Company: "NVDA", Year: 2023, Score: 0.9}, SubQuery: "NVDA revenue 2023"},
		},
		Duration: 120 * time.Millisecond,
	}}
	w := doJSON(t, queryRouter(svc), http.MethodPost, "/answer", map[string]any{
		"query":           "What was NVIDIA's revenue in 2023?",
		"include_sources": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Answer     string `json:"answer"`
		QueryType  string `json:"query_type"`
		DurationMs int64  `json:"duration_ms"`
		Sources    []struct {
			ChunkID  string `json:"chunk_id"`
			SubQuery string `json:"sub_query"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	assert.Equal(t, "$26.97 billion", resp.Answer)
	assert.Equal(t, "simple_direct", resp.QueryType)
	assert.Equal(t, int64(120), resp.DurationMs)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "NVDA revenue 2023", resp.Sources[0].SubQuery)
}

func TestAnswerOmitsSourcesByDefault(t *testing.T) {
	svc := &fakeQueryService{result: &pipeline.AnswerResult{
		Answer:  "ok",
		Sources: []pipeline.RankedChunk{{Chunk: retrieval.Chunk{ID: "c1"}}},
	}}
	w := doJSON(t, queryRouter(svc), http.MethodPost, "/answer", map[string]any{"query": "q"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"sources"`)
}

func TestAnswerValidation(t *testing.T) {
	svc := &fakeQueryService{}
	w := doJSON(t, queryRouter(svc), http.MethodPost, "/answer", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.got)
}

func TestAnswerStageErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		stage  string
	}{
		{
			name:   "search timeout",
			err:    &pipeline.StageError{Stage: pipeline.StageRetrieve, Err: pipeline.ErrSearchTimeout},
			status: http.StatusGatewayTimeout,
			code:   string(apperrors.CodeTimeout),
			stage:  "retrieve",
		},
		{
			name:   "generation failed",
			err:    &pipeline.StageError{Stage: pipeline.StageGenerate, Err: apperrors.Wrap(errors.New("quota"), apperrors.CodeGenerationFailed, "answer generation failed")},
			status: http.StatusInternalServerError,
			code:   string(apperrors.CodeGenerationFailed),
			stage:  "generate",
		},
		{
			name:   "empty query",
			err:    apperrors.ErrQueryEmpty,
			status: http.StatusBadRequest,
			code:   string(apperrors.CodeQueryEmpty),
		},
		{
			name:   "bare deadline",
			err:    &pipeline.StageError{Stage: pipeline.StageRetrieve, Err: context.DeadlineExceeded},
			status: http.StatusGatewayTimeout,
			code:   string(apperrors.CodeTimeout),
			stage:  "retrieve",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, queryRouter(&fakeQueryService{err: tc.err}), http.MethodPost, "/answer", map[string]any{"query": "q"})
			assert.Equal(t, tc.status, w.Code)
			env := decode(t, w)
			assert.Equal(t, tc.code, env.Error.ErrorCode)
			assert.Equal(t, tc.stage, env.Error.Stage)
		})
	}
}

func TestAnswerCancelled(t *testing.T) {
	svc := &fakeQueryService{err: &pipeline.StageError{Stage: pipeline.StageRetrieve, Err: context.Canceled}}
	w := doJSON(t, queryRouter(svc), http.MethodPost, "/answer", map[string]any{"query": "q"})
	assert.Equal(t, statusClientClosedRequest, w.Code)
}

func TestDecomposeAndExamples(t *testing.T) {
	r := queryRouter(&fakeQueryService{})

	w := doJSON(t, r, http.MethodPost, "/decompose", map[string]any{"query": "Microsoft revenue 2023"})
	require.Equal(t, http.StatusOK, w.Code)
	var dq query.DecomposedQuery
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &dq))
	assert.Equal(t, query.TypeSimpleDirect, dq.Type)
	assert.NotEmpty(t, dq.SubQueries)

	w = doJSON(t, r, http.MethodGet, "/examples", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ex struct {
		Categories []query.ExampleCategory `json:"categories"`
		ByCategory map[string][]string     `json:"by_category"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &ex))
	assert.Len(t, ex.Categories, 3)
	require.Len(t, ex.ByCategory, 3)
	assert.Equal(t, ex.Categories[1].Questions, ex.ByCategory["Comparative"])
}

func TestRetrievalSearch(t *testing.T) {
	s := &fakeSearcher{chunks: []retrieval.Chunk{{ID: "c1", Company: "MSFT", Year: 2023}}}
	r := gin.New()
	r.POST("/search", NewRetrievalHandler(s, 7).Search)

	w := doJSON(t, r, http.MethodPost, "/search", map[string]any{"query": " revenue ", "company": "msft", "year": 2023})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "revenue", s.in.Query)
	assert.Equal(t, 7, s.in.TopK)
	assert.Equal(t, retrieval.Filters{Company: "MSFT", Year: 2023}, s.in.Filters)

	w = doJSON(t, r, http.MethodPost, "/search", map[string]any{"query": "x", "top_k": 500})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetrievalSearchErrors(t *testing.T) {
	r := gin.New()
	r.POST("/disabled", NewRetrievalHandler(&fakeSearcher{err: retrieval.ErrVectorDisabled}, 5).Search)
	r.POST("/failed", NewRetrievalHandler(&fakeSearcher{err: errors.New("milvus down")}, 5).Search)
	r.POST("/nil", NewRetrievalHandler(nil, 5).Search)

	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, r, http.MethodPost, "/disabled", map[string]any{"query": "x"}).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, r, http.MethodPost, "/nil", map[string]any{"query": "x"}).Code)

	w := doJSON(t, r, http.MethodPost, "/failed", map[string]any{"query": "x"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(apperrors.CodeRetrievalFailed), decode(t, w).Error.ErrorCode)
}

func TestSystemStatus(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Name = "fin-rag-api"
	cfg.Features.AnswerCache.Enabled = true

	r := gin.New()
	r.GET("/ok", NewSystemHandler(cfg, &fakeStats{stats: &retrieval.CollectionStats{Backend: "memory", TotalChunks: 3}}).Status)
	r.GET("/fail", NewSystemHandler(cfg, &fakeStats{err: errors.New("unavailable")}).Status)

	w := doJSON(t, r, http.MethodGet, "/ok", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		App        string          `json:"app"`
		Features   map[string]bool `json:"features"`
		Collection struct {
			TotalChunks int64 `json:"total_chunks"`
		} `json:"collection"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	assert.Equal(t, "fin-rag-api", resp.App)
	assert.True(t, resp.Features["answer_cache"])
	assert.Equal(t, int64(3), resp.Collection.TotalChunks)

	w = doJSON(t, r, http.MethodGet, "/fail", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")
}

func TestReadiness(t *testing.T) {
	r := gin.New()
	r.GET("/ready-ok", NewHealthHandler("v1",
		Dependency{Name: "vector", Checker: fakeChecker{}, Required: true},
		Dependency{Name: "redis", Checker: fakeChecker{err: errors.New("down")}},
	).Ready)
	r.GET("/ready-fail", NewHealthHandler("v1",
		Dependency{Name: "postgres", Checker: fakeChecker{err: errors.New("down")}, Required: true},
	).Ready)
	r.GET("/health", NewHealthHandler("v1").Health)

	w := doJSON(t, r, http.MethodGet, "/ready-ok", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)

	w = doJSON(t, r, http.MethodGet, "/ready-fail", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"not_ready"`)

	w = doJSON(t, r, http.MethodGet, "/health", nil)
	assert.JSONEq(t, `{"status":"ok","version":"v1"}`, w.Body.String())
}

func TestQueryLogHandlers(t *testing.T) {
	id := uuid.NewString()
	repo := &fakeQueryLogRepo{logs: []*entity.QueryLog{{ID: id, Query: "q", QueryType: "comparative", Status: entity.QueryStatusSuccess}}}
	h := NewQueryLogHandler(repo)
	r := gin.New()
	r.GET("/queries", h.List)
	r.GET("/queries/stats", h.Stats)
	r.GET("/queries/:id", h.Get)

	w := doJSON(t, r, http.MethodGet, "/queries?status=success&company=msft&page_size=5&since=2h", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.QueryStatusSuccess, repo.filter.Status)
	assert.Equal(t, "MSFT", repo.filter.Company)
	assert.WithinDuration(t, time.Now().Add(-2*time.Hour), repo.filter.Since, time.Minute)
	assert.Contains(t, w.Body.String(), `"page_size":5`)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/queries?since=yesterday", nil).Code)

	assert.Equal(t, http.StatusOK, doJSON(t, r, http.MethodGet, "/queries/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/queries/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/queries/not-a-uuid", nil).Code)

	w = doJSON(t, r, http.MethodGet, "/queries/stats?window=1h", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), repo.since, time.Minute)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/queries/stats?window=bogus", nil).Code)
}

// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fin-rag-api/internal/application/pipeline"
	"fin-rag-api/internal/application/retrieval"
	"fin-rag-api/internal/interfaces/http/dto"
	apperrors "fin-rag-api/pkg/errors"
)

// RetrievalHandler 检索处理器
type RetrievalHandler struct {
	searcher    pipeline.Searcher
	defaultTopK int
}

// NewRetrievalHandler 创建检索处理器
func NewRetrievalHandler(searcher pipeline.Searcher, defaultTopK int) *RetrievalHandler {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &RetrievalHandler{
		searcher:    searcher,
		defaultTopK: defaultTopK,
	}
}

// Search 检索财报片段
// @Summary 检索片段
// @Description 按公司、年份、章节过滤的向量检索
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/retrieval/search [post]
func (h *RetrievalHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if h.searcher == nil {
		dto.ServiceUnavailable(c, "retrieval not configured")
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = h.defaultTopK
	}

	start := time.Now()
	chunks, err := h.searcher.Search(c.Request.Context(), retrieval.SearchInput{
		Query: strings.TrimSpace(req.Query),
		TopK:  topK,
		Filters: retrieval.Filters{
			Company: strings.ToUpper(strings.TrimSpace(req.Company)),
			Year:    req.Year,
			Section: strings.TrimSpace(req.Section),
		},
	})
	if err != nil {
		if errors.Is(err, retrieval.ErrVectorDisabled) {
			dto.ServiceUnavailable(c, "retrieval not configured")
			return
		}
		if !apperrors.IsAppError(err) {
			err = apperrors.Wrap(err, apperrors.CodeRetrievalFailed, "search failed")
		}
		respondPipelineError(c, err)
		return
	}
	if chunks == nil {
		chunks = []retrieval.Chunk{}
	}

	dto.Success(c, &dto.SearchResponse{
		Chunks: chunks,
		Metadata: &dto.RetrievalMeta{
			TotalChunks:         len(chunks),
			RetrievalDurationMs: time.Since(start).Milliseconds(),
		},
	})
}

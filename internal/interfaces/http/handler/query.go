// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"fin-rag-api/internal/application/pipeline"
	"fin-rag-api/internal/application/query"
	"fin-rag-api/internal/interfaces/http/dto"
	apperrors "fin-rag-api/pkg/errors"
	"fin-rag-api/pkg/logger"
)

// statusClientClosedRequest 客户端主动断开
const statusClientClosedRequest = 499

// QueryService 问答流水线
type QueryService interface {
	AnswerDetailed(ctx context.Context, q string) (*pipeline.AnswerResult, error)
	Decompose(q string) (*query.DecomposedQuery, error)
	Examples() []query.ExampleCategory
}

// QueryHandler 问答处理器
type QueryHandler struct {
	svc QueryService
}

// NewQueryHandler 创建问答处理器
func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

// Answer 端到端问答
// @Summary 财报问答
// @Description 分类、分解、检索并生成答案
// @Tags Query
// @Accept json
// @Produce json
// @Param body body dto.AnswerRequest true "问答请求"
// @Success 200 {object} dto.Response[dto.AnswerResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 504 {object} dto.ErrorResponse
// @Router /v1/query/answer [post]
func (h *QueryHandler) Answer(c *gin.Context) {
	var req dto.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.AnswerDetailed(c.Request.Context(), req.Query)
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	dto.Success(c, dto.NewAnswerResponse(res, req.IncludeSources))
}

// Decompose 仅返回查询分解结果，不检索
// @Summary 查询分解
// @Tags Query
// @Accept json
// @Produce json
// @Param body body dto.DecomposeRequest true "分解请求"
// @Success 200 {object} dto.Response[query.DecomposedQuery]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/query/decompose [post]
func (h *QueryHandler) Decompose(c *gin.Context) {
	var req dto.DecomposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	dq, err := h.svc.Decompose(req.Query)
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	dto.Success(c, dq)
}

// Examples 示例问题
// @Summary 示例问题
// @Tags Query
// @Produce json
// @Success 200 {object} dto.Response[dto.ExamplesResponse]
// @Router /v1/query/examples [get]
func (h *QueryHandler) Examples(c *gin.Context) {
	dto.Success(c, &dto.ExamplesResponse{
		Categories: h.svc.Examples(),
		ByCategory: query.ExamplesByCategory(),
	})
}

// respondPipelineError 将流水线错误映射为 HTTP 响应
func respondPipelineError(c *gin.Context, err error) {
	stage := string(pipeline.FailedStage(err))

	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn(c.Request.Context(), "request cancelled", "stage", stage)
		dto.Error(c, statusClientClosedRequest, "client closed request")
		return
	case !apperrors.IsAppError(err) && errors.Is(err, context.DeadlineExceeded):
		err = apperrors.ErrTimeout.WithError(err)
	}

	appErr := apperrors.AsAppError(err)
	if appErr.HTTPStatus >= 500 {
		logger.Error(c.Request.Context(), "query failed", err, "stage", stage)
	}
	dto.AppError(c, err, stage)
}

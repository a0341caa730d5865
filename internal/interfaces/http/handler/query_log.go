// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fin-rag-api/internal/domain/entity"
	"fin-rag-api/internal/domain/repository"
	"fin-rag-api/internal/interfaces/http/dto"
	apperrors "fin-rag-api/pkg/errors"
	"fin-rag-api/pkg/logger"
)

// 统计默认时间窗口
const defaultStatsWindow = 24 * time.Hour

// QueryLogHandler 问答日志处理器
type QueryLogHandler struct {
	repo repository.QueryLogRepository
}

// NewQueryLogHandler 创建问答日志处理器
func NewQueryLogHandler(repo repository.QueryLogRepository) *QueryLogHandler {
	return &QueryLogHandler{repo: repo}
}

// List 分页查询问答日志
// @Summary 问答日志列表
// @Tags QueryLog
// @Produce json
// @Param query_type query string false "查询类型"
// @Param status query string false "success | error"
// @Param company query string false "公司代码"
// @Param since query string false "RFC3339 时间或相对时长，如 2h"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]entity.QueryLog]
// @Router /v1/queries [get]
func (h *QueryLogHandler) List(c *gin.Context) {
	since, ok := dto.ParseSince(c.Query("since"), time.Now())
	if !ok {
		dto.BadRequest(c, "invalid since")
		return
	}
	filter := &repository.QueryLogFilter{
		QueryType: c.Query("query_type"),
		Status:    entity.QueryStatus(c.Query("status")),
		Company:   strings.ToUpper(strings.TrimSpace(c.Query("company"))),
		Since:     since,
	}

	result, err := h.repo.List(c.Request.Context(), filter, dto.BindPage(c))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list query logs", err)
		dto.AppError(c, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list query logs"), "")
		return
	}
	dto.SuccessWithPage(c, result.Items, dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// Get 获取单条问答日志
// @Summary 问答日志详情
// @Tags QueryLog
// @Produce json
// @Param id path string true "日志 ID"
// @Success 200 {object} dto.Response[entity.QueryLog]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/queries/{id} [get]
func (h *QueryLogHandler) Get(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		dto.BadRequest(c, "invalid id")
		return
	}

	log, err := h.repo.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			dto.NotFound(c, "query log not found")
			return
		}
		logger.Error(c.Request.Context(), "failed to get query log", err)
		dto.AppError(c, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get query log"), "")
		return
	}
	dto.Success(c, log)
}

// Stats 按查询类型统计
// @Summary 问答统计
// @Tags QueryLog
// @Produce json
// @Param window query string false "时间窗口，如 1h、24h"
// @Success 200 {object} dto.Response[[]repository.QueryLogStats]
// @Router /v1/queries/stats [get]
func (h *QueryLogHandler) Stats(c *gin.Context) {
	window := defaultStatsWindow
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			dto.BadRequest(c, "invalid window")
			return
		}
		window = d
	}

	stats, err := h.repo.StatsByType(c.Request.Context(), time.Now().Add(-window))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to aggregate query logs", err)
		dto.AppError(c, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to aggregate query logs"), "")
		return
	}
	if stats == nil {
		stats = []repository.QueryLogStats{}
	}
	dto.Success(c, stats)
}

// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"fin-rag-api/internal/application/retrieval"
	"fin-rag-api/internal/config"
	"fin-rag-api/internal/interfaces/http/dto"
	"fin-rag-api/pkg/logger"
)

// StatsProvider 向量集合统计
type StatsProvider interface {
	Stats(ctx context.Context) (*retrieval.CollectionStats, error)
}

// SystemHandler 系统状态处理器
type SystemHandler struct {
	cfg   *config.Config
	stats StatsProvider
}

// NewSystemHandler 创建系统状态处理器
func NewSystemHandler(cfg *config.Config, stats StatsProvider) *SystemHandler {
	return &SystemHandler{cfg: cfg, stats: stats}
}

// Status 系统状态
// @Summary 系统状态
// @Description 返回向量集合统计与功能开关
// @Tags System
// @Produce json
// @Success 200 {object} dto.Response[dto.SystemStatusResponse]
// @Router /v1/system/status [get]
func (h *SystemHandler) Status(c *gin.Context) {
	resp := &dto.SystemStatusResponse{Features: map[string]bool{}}
	if h.cfg != nil {
		resp.App = h.cfg.App.Name
		resp.Version = h.cfg.App.Version
		resp.Env = h.cfg.App.Env
		resp.Features["answer_cache"] = h.cfg.Features.AnswerCache.Enabled
		resp.Features["query_log"] = h.cfg.Features.QueryLog.Enabled
		resp.Features["rate_limit"] = h.cfg.Security.RateLimit.Enabled
	}

	if h.stats != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		stats, err := h.stats.Stats(ctx)
		if err != nil {
			// 统计失败不影响状态接口
			logger.Warn(ctx, "collection stats unavailable", "error", err.Error())
			resp.Error = err.Error()
		} else {
			resp.Collection = stats
		}
	}

	dto.Success(c, resp)
}

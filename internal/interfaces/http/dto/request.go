// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fin-rag-api/internal/domain/repository"
)

// BindPage 读取 page / page_size，非法值回落到默认
func BindPage(c *gin.Context) repository.Pagination {
	return repository.NewPagination(
		parseIntWithDefault(c.Query("page"), 1),
		parseIntWithDefault(c.Query("page_size"), repository.DefaultPageSize),
	)
}

func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// ParseSince 解析 since 参数：RFC3339 时间或相对时长（如 2h，表示最近 2 小时）
func ParseSince(raw string, now time.Time) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return now.Add(-d), true
	}
	return time.Time{}, false
}

// IDRequest 资源 ID 请求
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

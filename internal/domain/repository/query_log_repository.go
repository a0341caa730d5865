// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"fin-rag-api/internal/domain/entity"
)

// QueryLogFilter 问答日志过滤条件
type QueryLogFilter struct {
	QueryType string
	Status    entity.QueryStatus
	Company   string
	Since     time.Time
}

// QueryLogStats 按查询类型聚合的统计
type QueryLogStats struct {
	QueryType     string  `json:"query_type"`
	Total         int64   `json:"total"`
	Errors        int64   `json:"errors"`
	CacheHits     int64   `json:"cache_hits"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// QueryLogRepository 问答日志仓储接口
type QueryLogRepository interface {
	Create(ctx context.Context, log *entity.QueryLog) error
	GetByID(ctx context.Context, id string) (*entity.QueryLog, error)
	List(ctx context.Context, filter *QueryLogFilter, pagination Pagination) (*PagedResult[*entity.QueryLog], error)
	StatsByType(ctx context.Context, since time.Time) ([]QueryLogStats, error)
}

// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"fin-rag-api/internal/application/pipeline"
	"fin-rag-api/internal/domain/entity"
	"fin-rag-api/internal/domain/repository"
)

// 错误信息截断长度
const maxErrorMessageLen = 2000

// QueryLogRepository 问答日志仓储实现
type QueryLogRepository struct {
	client *Client
}

var (
	_ repository.QueryLogRepository = (*QueryLogRepository)(nil)
	_ pipeline.QueryLogWriter       = (*QueryLogRepository)(nil)
)

// NewQueryLogRepository 创建问答日志仓储
func NewQueryLogRepository(client *Client) *QueryLogRepository {
	return &QueryLogRepository{client: client}
}

// Create 写入一条问答日志，ID 为空时生成 UUID
func (r *QueryLogRepository) Create(ctx context.Context, log *entity.QueryLog) error {
	ctx, span := tracer.Start(ctx, "postgres.QueryLogRepository.Create")
	defer span.End()

	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if err := r.client.db.WithContext(ctx).Create(log).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create query log: %w", err)
	}
	return nil
}

// Record 实现 pipeline.QueryLogWriter
func (r *QueryLogRepository) Record(ctx context.Context, rec *pipeline.QueryRecord) error {
	return r.Create(ctx, newQueryLog(rec))
}

// GetByID 根据 ID 获取问答日志
func (r *QueryLogRepository) GetByID(ctx context.Context, id string) (*entity.QueryLog, error) {
	ctx, span := tracer.Start(ctx, "postgres.QueryLogRepository.GetByID")
	defer span.End()

	var log entity.QueryLog
	if err := r.client.db.WithContext(ctx).Where("id = ?", id).First(&log).Error; err != nil {
		err = translateError(err)
		if err != repository.ErrNotFound {
			span.RecordError(err)
		}
		return nil, err
	}
	return &log, nil
}

// List 按创建时间倒序分页查询
func (r *QueryLogRepository) List(ctx context.Context, filter *repository.QueryLogFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.QueryLog], error) {
	ctx, span := tracer.Start(ctx, "postgres.QueryLogRepository.List")
	defer span.End()

	db := applyQueryLogFilter(r.client.db.WithContext(ctx).Model(&entity.QueryLog{}), filter)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count query logs: %w", err)
	}

	var logs []*entity.QueryLog
	if err := db.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&logs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list query logs: %w", err)
	}

	return repository.NewPagedResult(logs, total, pagination), nil
}

// StatsByType 统计 since 之后各查询类型的请求量、错误数与平均耗时
func (r *QueryLogRepository) StatsByType(ctx context.Context, since time.Time) ([]repository.QueryLogStats, error) {
	ctx, span := tracer.Start(ctx, "postgres.QueryLogRepository.StatsByType")
	defer span.End()

	var stats []repository.QueryLogStats
	err := r.client.db.WithContext(ctx).
		Model(&entity.QueryLog{}).
		Select(`query_type,
			COUNT(*) AS total,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS errors,
			SUM(CASE WHEN cached THEN 1 ELSE 0 END) AS cache_hits,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms`, entity.QueryStatusError).
		Where("created_at >= ?", since).
		Group("query_type").
		Order("query_type").
		Scan(&stats).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to aggregate query logs: %w", err)
	}
	return stats, nil
}

func applyQueryLogFilter(db *gorm.DB, filter *repository.QueryLogFilter) *gorm.DB {
	if filter == nil {
		return db
	}
	if filter.QueryType != "" {
		db = db.Where("query_type = ?", filter.QueryType)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Company != "" {
		db = db.Where("? = ANY(companies)", filter.Company)
	}
	if !filter.Since.IsZero() {
		db = db.Where("created_at >= ?", filter.Since)
	}
	return db
}

func newQueryLog(rec *pipeline.QueryRecord) *entity.QueryLog {
	years := make(pq.Int64Array, 0, len(rec.Years))
	for _, y := range rec.Years {
		years = append(years, int64(y))
	}

	status := entity.QueryStatusSuccess
	if rec.Status == string(entity.QueryStatusError) {
		status = entity.QueryStatusError
	}

	msg := truncateRunes(rec.ErrorMessage, maxErrorMessageLen)

	return &entity.QueryLog{
		RequestID:     rec.RequestID,
		Query:         rec.Query,
		QueryType:     rec.QueryType.String(),
		Companies:     pq.StringArray(append([]string{}, rec.Companies...)),
		Years:         years,
		Metrics:       pq.StringArray(append([]string{}, rec.Metrics...)),
		SubQueryCount: rec.SubQueryCount,
		ChunkCount:    rec.ChunkCount,
		Status:        status,
		ErrorStage:    rec.ErrorStage,
		ErrorMessage:  msg,
		Cached:        rec.Cached,
		DurationMs:    rec.Duration.Milliseconds(),
		AnswerChars:   rec.AnswerCharCount,
	}
}

// truncateRunes 按字符截断，不拆分多字节序列
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

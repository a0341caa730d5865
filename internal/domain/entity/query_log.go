// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/lib/pq"
)

// QueryStatus 问答结果状态
type QueryStatus string

const (
	QueryStatusSuccess QueryStatus = "success"
	QueryStatusError   QueryStatus = "error"
)

// QueryLog 一次问答请求的审计记录
type QueryLog struct {
	ID            string         `json:"id" gorm:"type:uuid;primaryKey"`
	RequestID     string         `json:"request_id,omitempty" gorm:"type:varchar(64);index"`
	Query         string         `json:"query" gorm:"type:text;not null"`
	QueryType     string         `json:"query_type" gorm:"type:varchar(32);index;not null"`
	Companies     pq.StringArray `json:"companies" gorm:"type:text[]"`
	Years         pq.Int64Array  `json:"years" gorm:"type:integer[]"`
	Metrics       pq.StringArray `json:"metrics" gorm:"type:text[]"`
	SubQueryCount int            `json:"sub_query_count" gorm:"not null;default:0"`
	ChunkCount    int            `json:"chunk_count" gorm:"not null;default:0"`
	Status        QueryStatus    `json:"status" gorm:"type:varchar(16);index;not null"`
	ErrorStage    string         `json:"error_stage,omitempty" gorm:"type:varchar(32)"`
	ErrorMessage  string         `json:"error_message,omitempty" gorm:"type:text"`
	Cached        bool           `json:"cached" gorm:"not null;default:false"`
	DurationMs    int64          `json:"duration_ms" gorm:"not null;default:0"`
	AnswerChars   int            `json:"answer_chars" gorm:"not null;default:0"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
}

func (QueryLog) TableName() string {
	return "query_logs"
}

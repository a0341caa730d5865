// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"fin-rag-api/internal/application/retrieval"
)

// SearchRequest 检索请求
type SearchRequest struct {
	Query   string `json:"query" binding:"required,max=2000"`
	TopK    int    `json:"top_k,omitempty" binding:"omitempty,min=1,max=50"`
	Company string `json:"company,omitempty"`
	Year    int    `json:"year,omitempty" binding:"omitempty,min=1990,max=2100"`
	Section string `json:"section,omitempty"`
}

// SearchResponse 检索响应
type SearchResponse struct {
	Chunks   []retrieval.Chunk `json:"chunks"`
	Metadata *RetrievalMeta    `json:"metadata,omitempty"`
}

// RetrievalMeta 检索元数据
type RetrievalMeta struct {
	TotalChunks         int   `json:"total_chunks"`
	RetrievalDurationMs int64 `json:"retrieval_duration_ms"`
}

// SystemStatusResponse 系统状态
type SystemStatusResponse struct {
	App        string                     `json:"app"`
	Version    string                     `json:"version,omitempty"`
	Env        string                     `json:"env,omitempty"`
	Collection *retrieval.CollectionStats `json:"collection,omitempty"`
	Features   map[string]bool            `json:"features"`
	Error      string                     `json:"error,omitempty"`
}

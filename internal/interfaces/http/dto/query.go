// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"fin-rag-api/internal/application/pipeline"
	"fin-rag-api/internal/application/query"
)

// AnswerRequest 问答请求
type AnswerRequest struct {
	Query string `json:"query" binding:"required,max=2000"`
	// IncludeSources 是否返回引用片段
	IncludeSources bool `json:"include_sources,omitempty"`
}

// DecomposeRequest 查询分解请求
type DecomposeRequest struct {
	Query string `json:"query" binding:"required,max=2000"`
}

// SourceItem 答案引用的片段
type SourceItem struct {
	ChunkID  string  `json:"chunk_id"`
	Company  string  `json:"company"`
	Year     int     `json:"year"`
	Section  string  `json:"section,omitempty"`
	Score    float64 `json:"score"`
	SubQuery string  `json:"sub_query"`
	Content  string  `json:"content"`
}

// AnswerResponse 问答响应
type AnswerResponse struct {
	Query               string                   `json:"query"`
	Answer              string                   `json:"answer"`
	QueryType           query.QueryType          `json:"query_type"`
	Decomposed          *query.DecomposedQuery   `json:"decomposed_query,omitempty"`
	RequiresCalculation bool                     `json:"requires_calculation"`
	CalculationData     pipeline.CalculationData `json:"calculation_data,omitempty"`
	Sources             []*SourceItem            `json:"sources,omitempty"`
	Cached              bool                     `json:"cached"`
	DurationMs          int64                    `json:"duration_ms"`
}

// ExamplesResponse 示例问题响应
type ExamplesResponse struct {
	Categories []query.ExampleCategory `json:"categories"`
	ByCategory map[string][]string     `json:"by_category"`
}

// NewAnswerResponse 从流水线结果构建响应
func NewAnswerResponse(res *pipeline.AnswerResult, includeSources bool) *AnswerResponse {
	if res == nil {
		return nil
	}
	resp := &AnswerResponse{
		Query:               res.Query,
		Answer:              res.Answer,
		Decomposed:          res.Decomposed,
		RequiresCalculation: res.RequiresCalculation,
		CalculationData:     res.CalculationData,
		Cached:              res.Cached,
		DurationMs:          res.Duration.Milliseconds(),
	}
	if res.Decomposed != nil {
		resp.QueryType = res.Decomposed.Type
	}
	if includeSources {
		resp.Sources = make([]*SourceItem, 0, len(res.Sources))
		for i := range res.Sources {
			s := res.Sources[i]
			resp.Sources = append(resp.Sources, &SourceItem{
				ChunkID:  s.ID,
				Company:  s.Company,
				Year:     s.Year,
				Section:  s.Section,
				Score:    s.Score,
				SubQuery: s.SubQuery,
				Content:  s.Content,
			})
		}
	}
	return resp
}

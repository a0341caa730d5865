// Package pipeline 编排财报问答的多步检索流程：拆解、检索、数值抽取、上下文合成与答案生成
package pipeline

import (
	"context"
	"time"

	"fin-rag-api/internal/application/query"
	"fin-rag-api/internal/application/retrieval"
)

// Searcher 向量检索能力
type Searcher interface {
	Search(ctx context.Context, in retrieval.SearchInput) ([]retrieval.Chunk, error)
}

// Generator 答案生成能力
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// RetrievalResult 单个子查询的检索结果
type RetrievalResult struct {
	SubQuery query.SubQuery    `json:"sub_query"`
	Chunks   []retrieval.Chunk `json:"chunks"`
	Scores   []float64         `json:"scores"`
}

// RankedChunk 去重后的片段，记录首次出现时所属的子查询
type RankedChunk struct {
	retrieval.Chunk
	SubQuery string `json:"sub_query"`
}

// ExtractedNumber 从文本中识别出的金额
// Value 已换算为基本单位
type ExtractedNumber struct {
	Value        float64 `json:"value"`
	OriginalText string  `json:"original_text"`
	Context      string  `json:"context"`
	Unit         string  `json:"unit,omitempty"`
}

// CalculationEntry 某公司某年度的计算素材
type CalculationEntry struct {
	Company string                       `json:"company"`
	Year    int                          `json:"year"`
	Chunks  []retrieval.Chunk            `json:"chunks"`
	Metrics map[string][]ExtractedNumber `json:"metrics"`
}

// CalculationData 以 {company}_{year} 为键
type CalculationData map[string]*CalculationEntry

// ContextSynthesis 生成答案前的全部中间结果
type ContextSynthesis struct {
	OriginalQuery       string                 `json:"original_query"`
	Decomposed          *query.DecomposedQuery `json:"decomposed_query"`
	RetrievalResults    []RetrievalResult      `json:"retrieval_results"`
	RankedChunks        []RankedChunk          `json:"ranked_chunks"`
	SynthesizedContext  string                 `json:"synthesized_context"`
	RequiresCalculation bool                   `json:"requires_calculation"`
	CalculationData     CalculationData        `json:"calculation_data,omitempty"`
}

// AnswerResult 结构化的问答结果
type AnswerResult struct {
	Query               string                 `json:"query"`
	Answer              string                 `json:"answer"`
	Decomposed          *query.DecomposedQuery `json:"decomposed_query"`
	Sources             []RankedChunk          `json:"sources"`
	RequiresCalculation bool                   `json:"requires_calculation"`
	CalculationData     CalculationData        `json:"calculation_data,omitempty"`
	Cached              bool                   `json:"cached"`
	Duration            time.Duration          `json:"-"`
}

// AnswerCache 答案缓存，命中时返回 true
type AnswerCache interface {
	GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (*AnswerResult, error)) (*AnswerResult, bool, error)
}

// QueryRecord 一次问答的审计记录
type QueryRecord struct {
	Query           string
	QueryType       query.QueryType
	Companies       []string
	Years           []int
	Metrics         []string
	SubQueryCount   int
	ChunkCount      int
	Status          string
	ErrorStage      string
	ErrorMessage    string
	Cached          bool
	Duration        time.Duration
	RequestID       string
	AnswerCharCount int
}

// QueryLogWriter 问答审计日志写入
type QueryLogWriter interface {
	Record(ctx context.Context, rec *QueryRecord) error
}

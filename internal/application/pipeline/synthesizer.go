package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"fin-rag-api/internal/application/query"
)

const (
	defaultMaxContextChunks = 10
	defaultMaxChunkChars    = 1000
	defaultSection          = "General"
)

// Synthesizer 将检索结果渲染为答案生成用的上下文
type Synthesizer struct {
	maxChunks int
	maxChars  int
}

// NewSynthesizer 创建上下文合成器，非正数使用默认值
func NewSynthesizer(maxChunks, maxChars int) *Synthesizer {
	if maxChunks <= 0 {
		maxChunks = defaultMaxContextChunks
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChunkChars
	}
	return &Synthesizer{maxChunks: maxChunks, maxChars: maxChars}
}

// Deduplicate 展平所有检索结果，按 chunk_id 去重后按分数降序
// 同一片段保留首次出现的版本，并记录其子查询
func Deduplicate(results []RetrievalResult) []RankedChunk {
	flat := make([]RankedChunk, 0)
	for _, r := range results {
		for _, c := range r.Chunks {
			flat = append(flat, RankedChunk{Chunk: c, SubQuery: r.SubQuery.Text})
		}
	}
	return Rank(flat)
}

// Rank 对已展平的片段去重并稳定排序，重复调用结果不变
func Rank(chunks []RankedChunk) []RankedChunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]RankedChunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Top 取排序后的前 n 个片段
func (s *Synthesizer) Top(ranked []RankedChunk) []RankedChunk {
	if len(ranked) > s.maxChunks {
		return ranked[:s.maxChunks]
	}
	return ranked
}

// Render 生成文本上下文
func (s *Synthesizer) Render(dq *query.DecomposedQuery, ranked []RankedChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", dq.OriginalQuery)
	fmt.Fprintf(&b, "Query Type: %s\n", dq.Type)
	b.WriteString("\n")

	for i, c := range s.Top(ranked) {
		section := c.Section
		if section == "" {
			section = defaultSection
		}
		fmt.Fprintf(&b, "### Relevant Information %d\n", i+1)
		fmt.Fprintf(&b, "**Source**: %s %d (%s)\n", c.Company, c.Year, section)
		fmt.Fprintf(&b, "**Relevance**: %.3f\n", c.Score)
		fmt.Fprintf(&b, "**Content**: %s...\n", truncateRunes(c.Content, s.maxChars))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

package retrieval

// Filters 检索过滤条件，均为可选，多个条件之间为 AND
type Filters struct {
	Company string `json:"company,omitempty"`
	Year    int    `json:"year,omitempty"`
	Section string `json:"section,omitempty"`
}

// Empty 是否没有任何过滤条件
func (f Filters) Empty() bool {
	return f.Company == "" && f.Year == 0 && f.Section == ""
}

// SearchInput 检索输入
type SearchInput struct {
	Query   string
	TopK    int
	Filters Filters
}

// Chunk 财报文本片段，检索与入库的基本单位
// Score 仅在检索结果中有意义，越大越相关
type Chunk struct {
	ID         string            `json:"chunk_id"`
	Content    string            `json:"content"`
	Score      float64           `json:"score"`
	Company    string            `json:"company"`
	Year       int               `json:"year"`
	Section    string            `json:"section,omitempty"`
	SourceFile string            `json:"source_file,omitempty"`
	ChunkIndex int               `json:"chunk_index"`
	StartChar  int               `json:"start_char"`
	EndChar    int               `json:"end_char"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// CollectionStats 向量集合统计
type CollectionStats struct {
	Backend             string         `json:"backend"`
	Collection          string         `json:"collection"`
	TotalChunks         int64          `json:"total_chunks"`
	CompanyDistribution map[string]int `json:"company_distribution"`
	YearDistribution    map[int]int    `json:"year_distribution"`
	SectionDistribution map[string]int `json:"section_distribution"`
	DistributionSampled bool           `json:"distribution_sampled"`
}

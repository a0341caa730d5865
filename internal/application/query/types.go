// Package query 提供财报问题的分类与拆解
package query

// QueryType 查询类型
type QueryType string

const (
	TypeSimpleDirect QueryType = "simple_direct"
	TypeComparative  QueryType = "comparative"
	TypeCrossCompany QueryType = "cross_company"
	// TypeTemporal 预留类型，分类器不会产出
	TypeTemporal    QueryType = "temporal"
	TypeCalculation QueryType = "calculation"
)

// String 实现 fmt.Stringer
func (t QueryType) String() string { return string(t) }

// Valid 是否为已知类型
func (t QueryType) Valid() bool {
	switch t {
	case TypeSimpleDirect, TypeComparative, TypeCrossCompany, TypeTemporal, TypeCalculation:
		return true
	}
	return false
}

// 计算类型
const (
	CalculationGrowth     = "growth"
	CalculationComparison = "comparison"
	CalculationGeneral    = "general"
)

// Entities 从问题中抽取的实体，均为去重后的有序集合
type Entities struct {
	Companies []string `json:"companies"`
	Years     []int    `json:"years"`
	Metrics   []string `json:"metrics"`
}

// FirstCompany 第一个公司，没有则为空
func (e Entities) FirstCompany() string {
	if len(e.Companies) == 0 {
		return ""
	}
	return e.Companies[0]
}

// FirstYear 第一个年份，没有则为 0
func (e Entities) FirstYear() int {
	if len(e.Years) == 0 {
		return 0
	}
	return e.Years[0]
}

// FirstMetric 第一个指标，没有则为空
func (e Entities) FirstMetric() string {
	if len(e.Metrics) == 0 {
		return ""
	}
	return e.Metrics[0]
}

// Classification 分类结果
type Classification struct {
	Type     QueryType `json:"query_type"`
	Entities Entities  `json:"entities"`
}

// SubQuery 可独立检索的子查询
// Year 为 0、字符串为空表示未设置
type SubQuery struct {
	Text        string    `json:"query"`
	Type        QueryType `json:"query_type"`
	Company     string    `json:"company,omitempty"`
	Year        int       `json:"year,omitempty"`
	Metric      string    `json:"metric,omitempty"`
	SectionHint string    `json:"section_hint,omitempty"`
}

// Retrievable 计算类子查询不参与检索
func (s SubQuery) Retrievable() bool {
	return s.Type != TypeCalculation
}

// DecomposedQuery 拆解结果，至少包含一个子查询
type DecomposedQuery struct {
	OriginalQuery       string     `json:"original_query"`
	Type                QueryType  `json:"query_type"`
	Entities            Entities   `json:"entities"`
	SubQueries          []SubQuery `json:"sub_queries"`
	RequiresCalculation bool       `json:"requires_calculation"`
	CalculationType     string     `json:"calculation_type,omitempty"`
}

// RetrievableCount 需要检索的子查询数量
func (d *DecomposedQuery) RetrievableCount() int {
	n := 0
	for _, sq := range d.SubQueries {
		if sq.Retrievable() {
			n++
		}
	}
	return n
}

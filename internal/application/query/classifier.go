package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// yearPattern 四位年份
var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// 默认年份范围
const (
	DefaultYearMin = 2020
	DefaultYearMax = 2025
)

// Classifier 查询分类器
// 无内部可变状态，可并发使用
type Classifier struct {
	yearMin int
	yearMax int
}

// NewClassifier 创建分类器；年份范围非法时使用默认值
func NewClassifier(yearMin, yearMax int) *Classifier {
	if yearMin <= 0 || yearMax <= 0 || yearMin > yearMax {
		yearMin, yearMax = DefaultYearMin, DefaultYearMax
	}
	return &Classifier{yearMin: yearMin, yearMax: yearMax}
}

// Classify 判定查询类型并抽取实体
func (c *Classifier) Classify(q string) Classification {
	lower := strings.ToLower(q)
	ent := Entities{
		Companies: extractCompanies(lower),
		Years:     c.extractYears(q),
		Metrics:   extractMetrics(lower),
	}
	return Classification{Type: classify(lower, ent), Entities: ent}
}

// classify 按优先级判定：跨公司 > 时间对比 > 显式计算 > 直接查询
func classify(lower string, ent Entities) QueryType {
	switch {
	case len(ent.Companies) > 1 || containsAny(lower, comparisonKeywords):
		return TypeCrossCompany
	case len(ent.Years) > 1 || containsAny(lower, temporalKeywords()):
		return TypeComparative
	case containsAny(lower, calculationKeywords):
		return TypeCalculation
	default:
		return TypeSimpleDirect
	}
}

// ExtractCompanies 抽取公司代码
func (c *Classifier) ExtractCompanies(q string) []string {
	return extractCompanies(strings.ToLower(q))
}

// ExtractYears 抽取范围内的年份（升序去重）
func (c *Classifier) ExtractYears(q string) []int {
	return c.extractYears(q)
}

// ExtractMetrics 抽取标准指标名
func (c *Classifier) ExtractMetrics(q string) []string {
	return extractMetrics(strings.ToLower(q))
}

func extractCompanies(lower string) []string {
	var out []string
	seen := make(map[string]struct{}, 3)
	for _, a := range companyAliases {
		if !strings.Contains(lower, a.surface) {
			continue
		}
		if _, ok := seen[a.ticker]; ok {
			continue
		}
		seen[a.ticker] = struct{}{}
		out = append(out, a.ticker)
	}
	return out
}

func (c *Classifier) extractYears(q string) []int {
	var out []int
	seen := make(map[int]struct{})
	for _, m := range yearPattern.FindAllStringSubmatch(q, -1) {
		y, err := strconv.Atoi(m[1])
		if err != nil || y < c.yearMin || y > c.yearMax {
			continue
		}
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

func extractMetrics(lower string) []string {
	var out []string
	for _, m := range metricCatalog {
		if containsAny(lower, m.variants) {
			out = append(out, m.name)
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

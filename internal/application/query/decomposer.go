package query

import (
	"fmt"
	"strings"
)

// Decomposer 按查询类型把问题拆成子查询
type Decomposer struct {
	classifier *Classifier
	roster     []string
}

// NewDecomposer 创建拆解器；roster 为空时使用 DefaultRoster
func NewDecomposer(classifier *Classifier, roster []string) *Decomposer {
	if classifier == nil {
		classifier = NewClassifier(DefaultYearMin, DefaultYearMax)
	}
	if len(roster) == 0 {
		roster = DefaultRoster
	}
	r := make([]string, len(roster))
	copy(r, roster)
	return &Decomposer{classifier: classifier, roster: r}
}

// DecomposeQuery 分类并拆解
func (d *Decomposer) DecomposeQuery(q string) *DecomposedQuery {
	return d.Decompose(q, d.classifier.Classify(q))
}

// Decompose 根据分类结果拆解查询
func (d *Decomposer) Decompose(q string, c Classification) *DecomposedQuery {
	p := d.planFor(q, c)
	out := &DecomposedQuery{
		OriginalQuery:       q,
		Type:                c.Type,
		Entities:            c.Entities,
		SubQueries:          p.subQueries(q),
		RequiresCalculation: p.requiresCalculation(),
	}
	if out.RequiresCalculation {
		out.CalculationType = calculationType(strings.ToLower(q))
	}
	return out
}

// plan 每种拆解策略只持有自己需要的字段
type plan interface {
	subQueries(q string) []SubQuery
	requiresCalculation() bool
}

// planFor 构造拆解策略；对比类前置条件不满足时退化为直接查询
func (d *Decomposer) planFor(q string, c Classification) plan {
	ent := c.Entities
	direct := directPlan{company: ent.FirstCompany(), year: ent.FirstYear(), metric: ent.FirstMetric()}

	switch c.Type {
	case TypeComparative:
		if len(ent.Companies) == 1 && len(ent.Years) > 1 && len(ent.Metrics) > 0 {
			return comparativePlan{company: ent.Companies[0], metric: ent.Metrics[0], years: ent.Years}
		}
		direct.calculation = true
		return direct
	case TypeCrossCompany:
		targets := ent.Companies
		if len(targets) == 0 {
			targets = d.roster
		}
		return crossCompanyPlan{targets: targets, metric: ent.FirstMetric(), year: ent.FirstYear()}
	case TypeCalculation:
		direct.calculation = true
		return direct
	default:
		return direct
	}
}

// directPlan 单个子查询，文本为原问题
type directPlan struct {
	company     string
	year        int
	metric      string
	calculation bool
}

func (p directPlan) subQueries(q string) []SubQuery {
	return []SubQuery{{
		Text:    q,
		Type:    TypeSimpleDirect,
		Company: p.company,
		Year:    p.year,
		Metric:  p.metric,
	}}
}

func (p directPlan) requiresCalculation() bool { return p.calculation }

// comparativePlan 单公司多年份；years 已升序
type comparativePlan struct {
	company string
	metric  string
	years   []int
}

func (p comparativePlan) subQueries(string) []SubQuery {
	out := make([]SubQuery, 0, len(p.years)+1)
	for _, y := range p.years {
		out = append(out, SubQuery{
			Text:    fmt.Sprintf("%s %s %d", p.company, p.metric, y),
			Type:    TypeSimpleDirect,
			Company: p.company,
			Year:    y,
			Metric:  p.metric,
		})
	}
	if len(p.years) == 2 {
		out = append(out, SubQuery{
			Text:    fmt.Sprintf("Calculate growth from %d to %d", p.years[0], p.years[1]),
			Type:    TypeCalculation,
			Company: p.company,
			Metric:  p.metric,
		})
	}
	return out
}

func (comparativePlan) requiresCalculation() bool { return true }

// crossCompanyPlan 每个目标公司一个子查询，加一条比较指令
type crossCompanyPlan struct {
	targets []string
	metric  string
	year    int
}

func (p crossCompanyPlan) subQueries(q string) []SubQuery {
	out := make([]SubQuery, 0, len(p.targets)+1)
	for _, company := range p.targets {
		text := fmt.Sprintf("%s %s", company, q)
		if p.metric != "" && p.year != 0 {
			text = fmt.Sprintf("%s %s %d", company, p.metric, p.year)
		}
		out = append(out, SubQuery{
			Text:    text,
			Type:    TypeSimpleDirect,
			Company: company,
			Year:    p.year,
			Metric:  p.metric,
		})
	}

	compare := "Compare across companies"
	if p.metric != "" {
		compare = fmt.Sprintf("Compare %s across companies", p.metric)
	}
	return append(out, SubQuery{Text: compare, Type: TypeCalculation, Metric: p.metric})
}

func (crossCompanyPlan) requiresCalculation() bool { return true }

// calculationType 关键词判定，与所选拆解策略无关
func calculationType(lower string) string {
	switch {
	case containsAny(lower, calculationGrowthKeywords):
		return CalculationGrowth
	case containsAny(lower, comparisonKeywords):
		return CalculationComparison
	default:
		return CalculationGeneral
	}
}

package query

// alias 公司别名（小写子串）到股票代码
type alias struct {
	surface string
	ticker  string
}

// companyAliases 扫描顺序决定公司输出顺序
var companyAliases = []alias{
	{"google", "GOOGL"},
	{"alphabet", "GOOGL"},
	{"microsoft", "MSFT"},
	{"nvidia", "NVDA"},
	{"googl", "GOOGL"},
	{"msft", "MSFT"},
	{"nvda", "NVDA"},
}

// DefaultRoster 跨公司查询未指明公司时覆盖的公司
var DefaultRoster = []string{"GOOGL", "MSFT", "NVDA"}

// metricDef 标准指标名及其表述
type metricDef struct {
	name     string
	variants []string
}

var metricCatalog = []metricDef{
	{"revenue", []string{"revenue", "sales", "total revenue", "net sales"}},
	{"profit", []string{"profit", "net income", "earnings", "net profit"}},
	{"operating_income", []string{"operating income", "operating profit", "operating earnings"}},
	{"operating_margin", []string{"operating margin", "operating profit margin"}},
	{"gross_margin", []string{"gross margin", "gross profit margin"}},
	{"cash", []string{"cash", "cash and equivalents", "cash position"}},
	{"debt", []string{"debt", "total debt", "long-term debt"}},
	{"assets", []string{"assets", "total assets"}},
	{"equity", []string{"equity", "shareholders equity", "stockholders equity"}},
	{"eps", []string{"earnings per share", "eps"}},
	{"data_center_revenue", []string{"data center revenue", "datacenter revenue", "data center sales"}},
}

var (
	growthKeywords     = []string{"growth", "grew", "increase", "increased", "change"}
	declineKeywords    = []string{"decline", "decreased", "drop", "fell"}
	comparisonTemporal = []string{"compare", "comparison", "versus", "vs", "compared to"}

	comparisonKeywords = []string{
		"highest", "lowest", "best", "worst", "most", "least",
		"greater", "better", "which company", "who had",
	}

	calculationKeywords = []string{"calculate", "compute", "growth rate", "percentage"}

	// calculationGrowthKeywords 判定 growth 计算类型
	calculationGrowthKeywords = []string{"growth", "grew", "increase"}
)

// temporalKeywords 所有时间类关键词
func temporalKeywords() []string {
	out := make([]string, 0, len(growthKeywords)+len(declineKeywords)+len(comparisonTemporal))
	out = append(out, growthKeywords...)
	out = append(out, declineKeywords...)
	return append(out, comparisonTemporal...)
}

package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fin-rag-api/internal/application/query"
	"fin-rag-api/internal/application/retrieval"
)

func TestExtractNumbersScaleUnits(t *testing.T) {
	tests := []struct {
		text  string
		value float64
		unit  string
		orig  string
	}{
		{"revenue of $1.5 billion", 1.5e9, "billion", "$1.5 billion"},
		{"net income 72,361 million", 72361e6, "million", "72,361 million"},
		{"cash of $120,000", 120000, "", "$120,000"},
		{"margin 300 thousand units", 300e3, "thousand", "300 thousand"},
		{"about 45B in sales", 45e9, "B", "45B"},
		{"backlog 7.5M", 7.5e6, "M", "7.5M"},
		{"headcount 221K", 221e3, "K", "221K"},
		{"total 2 Billion", 2e9, "Billion", "2 Billion"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			nums := ExtractNumbers(tt.text)
			require.Len(t, nums, 1)
			assert.InDelta(t, tt.value, nums[0].Value, 1e-3)
			assert.Equal(t, tt.unit, nums[0].Unit)
			assert.Equal(t, tt.orig, nums[0].OriginalText)
		})
	}
}

func TestExtractNumbersIgnoresGluedDigits(t *testing.T) {
	assert.Empty(t, ExtractNumbers("garbage123abc"))
	assert.Empty(t, ExtractNumbers("no numbers here"))
}

func TestExtractNumbersRejectsTruncatedDecimals(t *testing.T) {
	assert.Empty(t, ExtractNumbers("$5.2bn in sales"))
	assert.Empty(t, ExtractNumbers("grew 12.5abc units"))

	nums := ExtractNumbers("revenue of 7.5 billion. Next year 3.")
	require.Len(t, nums, 2)
	assert.InDelta(t, 7.5e9, nums[0].Value, 1)
	assert.InDelta(t, 3, nums[1].Value, 1e-9)
}

func TestExtractNumbersMultiple(t *testing.T) {
	nums := ExtractNumbers("Revenue grew from $198.3 billion in 2022 to $211.9 billion in 2023.")
	require.Len(t, nums, 4)
	assert.InDelta(t, 198.3e9, nums[0].Value, 1)
	assert.InDelta(t, 2022, nums[1].Value, 1e-9)
	assert.InDelta(t, 211.9e9, nums[2].Value, 1)
	assert.InDelta(t, 2023, nums[3].Value, 1e-9)
}

func TestExtractNumbersContextWindow(t *testing.T) {
	prefix := strings.Repeat("a", 80) + " "
	suffix := " " + strings.Repeat("z", 80)
	nums := ExtractNumbers(prefix + "$5 million" + suffix)
	require.Len(t, nums, 1)

	ctx := nums[0].Context
	assert.Contains(t, ctx, "$5 million")
	// 前后各 50 个字符，首尾空白被去掉
	assert.Equal(t, strings.Repeat("a", 49)+" $5 million "+strings.Repeat("z", 49), ctx)
}

func TestExtractNumbersContextAtEdges(t *testing.T) {
	nums := ExtractNumbers("  $3 billion  ")
	require.Len(t, nums, 1)
	assert.Equal(t, "$3 billion", nums[0].Context)
}

func TestExtractFinancialDataGroupsByCompanyYear(t *testing.T) {
	dq := &query.DecomposedQuery{RequiresCalculation: true}
	results := []RetrievalResult{
		{
			SubQuery: query.SubQuery{Text: "MSFT revenue 2022", Company: "MSFT", Year: 2022, Metric: "revenue"},
			Chunks:   []retrieval.Chunk{{ID: "1", Content: "Revenue was $198.3 billion."}},
		},
		{
			SubQuery: query.SubQuery{Text: "MSFT revenue 2023", Company: "MSFT", Year: 2023, Metric: "revenue"},
			Chunks: []retrieval.Chunk{
				{ID: "2", Content: "Revenue was $211.9 billion."},
				{ID: "3", Content: "No figures."},
			},
		},
		{
			SubQuery: query.SubQuery{Text: "no year", Company: "MSFT"},
			Chunks:   []retrieval.Chunk{{ID: "4", Content: "$1 million"}},
		},
	}

	data := ExtractFinancialData(context.Background(), results, dq)
	require.Len(t, data, 2)

	e := data["MSFT_2023"]
	require.NotNil(t, e)
	assert.Equal(t, "MSFT", e.Company)
	assert.Equal(t, 2023, e.Year)
	assert.Len(t, e.Chunks, 2)
	require.Len(t, e.Metrics["revenue"], 1)
	assert.InDelta(t, 211.9e9, e.Metrics["revenue"][0].Value, 1)

	assert.Contains(t, data, "MSFT_2022")
}

func TestExtractFinancialDataEmptyMetricKey(t *testing.T) {
	dq := &query.DecomposedQuery{RequiresCalculation: true}
	data := ExtractFinancialData(context.Background(), []RetrievalResult{{
		SubQuery: query.SubQuery{Company: "NVDA", Year: 2024},
		Chunks:   []retrieval.Chunk{{ID: "1", Content: "$60.9 billion"}},
	}}, dq)
	require.Contains(t, data, "NVDA_2024")
	assert.Len(t, data["NVDA_2024"].Metrics[""], 1)
}

func TestExtractFinancialDataSkippedWithoutCalculation(t *testing.T) {
	data := ExtractFinancialData(context.Background(), []RetrievalResult{{
		SubQuery: query.SubQuery{Company: "NVDA", Year: 2024},
		Chunks:   []retrieval.Chunk{{ID: "1", Content: "$60.9 billion"}},
	}}, &query.DecomposedQuery{})
	assert.Empty(t, data)
}

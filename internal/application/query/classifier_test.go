package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCompanies(t *testing.T) {
	c := NewClassifier(2020, 2025)

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"alias", "What did Alphabet report?", []string{"GOOGL"}},
		{"dedupe", "Alphabet (GOOGL), also known as Google", []string{"GOOGL"}},
		{"catalog order", "nvidia versus microsoft", []string{"MSFT", "NVDA"}},
		{"ticker", "NVDA and MSFT", []string{"MSFT", "NVDA"}},
		{"name before ticker", "nvidia and googl", []string{"NVDA", "GOOGL"}},
		{"google name first", "msft vs google", []string{"GOOGL", "MSFT"}},
		{"none", "What is a 10-K?", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ExtractCompanies(tt.in))
		})
	}
}

func TestExtractYears(t *testing.T) {
	c := NewClassifier(2020, 2025)

	assert.Equal(t, []int{2022, 2023}, c.ExtractYears("from 2023 to 2022 and back to 2023"))
	assert.Empty(t, c.ExtractYears("revenue in 2019 and 2031"))
	assert.Empty(t, c.ExtractYears("order 12023 shipped"))
	assert.Equal(t, []int{2024}, c.ExtractYears("FY2024 is not a year but 2024 is"))

	wide := NewClassifier(2000, 2099)
	assert.Equal(t, []int{2019}, wide.ExtractYears("in 2019"))
}

func TestNewClassifierInvalidRange(t *testing.T) {
	c := NewClassifier(2030, 2020)
	assert.Equal(t, []int{2020, 2025}, c.ExtractYears("2020 2025 2026"))
}

func TestExtractMetrics(t *testing.T) {
	c := NewClassifier(2020, 2025)

	assert.Equal(t, []string{"operating_margin"}, c.ExtractMetrics("highest Operating Margin"))
	assert.Equal(t, []string{"revenue", "data_center_revenue"}, c.ExtractMetrics("data center revenue"))
	assert.Equal(t, []string{"profit", "eps"}, c.ExtractMetrics("earnings per share"))
	assert.Empty(t, c.ExtractMetrics("how many employees"))
}

func TestClassifyPrecedence(t *testing.T) {
	c := NewClassifier(2020, 2025)

	tests := []struct {
		name string
		in   string
		want QueryType
	}{
		{"two companies", "Compare Google and Microsoft revenue in 2024", TypeCrossCompany},
		{"comparison keyword", "Which company had the highest operating margin in 2023?", TypeCrossCompany},
		{"cross beats temporal", "Who had the best revenue growth from 2022 to 2023?", TypeCrossCompany},
		{"two years", "Microsoft revenue 2022 and 2023", TypeComparative},
		{"temporal keyword", "Did NVIDIA's revenue decline in 2023?", TypeComparative},
		{"temporal beats calculation", "Calculate Microsoft's revenue change in 2023", TypeComparative},
		{"calculation", "Calculate Microsoft's cash percentage in 2023", TypeCalculation},
		{"direct", "What was Microsoft's total revenue in 2023?", TypeSimpleDirect},
		{"nothing found", "Tell me about filings", TypeSimpleDirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.in).Type)
		})
	}
}

func TestClassifyManyCompaniesAlwaysCrossCompany(t *testing.T) {
	c := NewClassifier(2020, 2025)
	for _, q := range []string{
		"google microsoft",
		"NVIDIA revenue vs Alphabet revenue 2023",
		"msft nvda gross margin 2022 to 2024",
	} {
		assert.Equal(t, TypeCrossCompany, c.Classify(q).Type, q)
	}
}

func TestQueryTypeValid(t *testing.T) {
	assert.True(t, TypeTemporal.Valid())
	assert.False(t, QueryType("bogus").Valid())
	assert.Equal(t, "cross_company", TypeCrossCompany.String())
}

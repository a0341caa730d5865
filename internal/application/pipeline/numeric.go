package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"fin-rag-api/internal/application/query"
	"fin-rag-api/internal/application/retrieval"
	"fin-rag-api/pkg/logger"
)

const numberContextRunes = 50

// 金额：可选 $，千分位与小数，可选量级单位；紧贴字母的数字不算
var numberPattern = regexp.MustCompile(`(?i)\$?\b(\d+(?:,\d{3})*(?:\.\d+)?)(?:\s*(billion|million|thousand|b|m|k)\b|\b)`)

// ExtractNumbers 识别文本中的金额并换算到基本单位
func ExtractNumbers(text string) []ExtractedNumber {
	return extractNumbers(context.Background(), text)
}

func extractNumbers(ctx context.Context, text string) []ExtractedNumber {
	matches := numberPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	out := make([]ExtractedNumber, 0, len(matches))
	for _, m := range matches {
		raw := text[m[2]:m[3]]
		if gluedToText(text, m[1]) {
			logger.Debug(ctx, "skip malformed number", "text", text[m[0]:min(len(text), m[1]+8)])
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			logger.Debug(ctx, "skip unparsable number", "text", raw, "error", err.Error())
			continue
		}

		unit := ""
		if m[4] >= 0 {
			unit = text[m[4]:m[5]]
		}
		value *= unitMultiplier(unit)

		out = append(out, ExtractedNumber{
			Value:        value,
			OriginalText: text[m[0]:m[1]],
			Context:      strings.TrimSpace(runeWindow(text, m[0], m[1], numberContextRunes)),
			Unit:         unit,
		})
	}
	return out
}

// gluedToText 判断匹配结尾是否紧贴字母、数字或后续小数位
// 例如 "5.2bn" 只能匹配到 "5"，必须整体丢弃
func gluedToText(text string, end int) bool {
	if end >= len(text) {
		return false
	}
	if text[end] == '.' {
		return end+1 < len(text) && text[end+1] >= '0' && text[end+1] <= '9'
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func unitMultiplier(unit string) float64 {
	switch strings.ToLower(unit) {
	case "billion", "b":
		return 1e9
	case "million", "m":
		return 1e6
	case "thousand", "k":
		return 1e3
	default:
		return 1
	}
}

// runeWindow 返回 [start,end) 前后各扩展 n 个字符的子串
func runeWindow(text string, start, end, n int) string {
	for i := 0; i < n && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}
	for i := 0; i < n && end < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	return text[start:end]
}

// ExtractFinancialData 按子查询的公司与年份归集片段和金额
//
// 仅在需要计算时执行；公司或年份缺失的子查询不参与归集。
// 使用全部检索片段，不受上下文条数限制。
func ExtractFinancialData(ctx context.Context, results []RetrievalResult, dq *query.DecomposedQuery) CalculationData {
	data := make(CalculationData)
	if dq == nil || !dq.RequiresCalculation {
		return data
	}

	for _, r := range results {
		sq := r.SubQuery
		if sq.Company == "" || sq.Year == 0 {
			continue
		}
		key := fmt.Sprintf("%s_%d", sq.Company, sq.Year)
		entry, ok := data[key]
		if !ok {
			entry = &CalculationEntry{
				Company: sq.Company,
				Year:    sq.Year,
				Chunks:  make([]retrieval.Chunk, 0),
				Metrics: make(map[string][]ExtractedNumber),
			}
			data[key] = entry
		}
		entry.Chunks = append(entry.Chunks, r.Chunks...)

		for _, c := range r.Chunks {
			nums := extractNumbers(ctx, c.Content)
			if len(nums) == 0 {
				continue
			}
			entry.Metrics[sq.Metric] = append(entry.Metrics[sq.Metric], nums...)
		}
	}
	return data
}

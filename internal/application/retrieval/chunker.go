package retrieval

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	defaultMaxChunkSize = 2000
	defaultMinChunkSize = 100
	defaultOverlapSize  = 200

	// minParagraphRunes 更短的段落直接丢弃
	minParagraphRunes = 10
	// minOverlapWords 上一片段词数不超过该值时不加重叠
	minOverlapWords = 20

	unknownCompany = "UNKNOWN"
	fallbackYear   = 2023
)

var (
	paragraphBreak  = regexp.MustCompile(`\n\s*\n`)
	filingNameRegex = regexp.MustCompile(`([A-Z]+)_10K_(\d{4})`)
)

// sectionPattern 10-K 章节识别规则，按顺序匹配
type sectionPattern struct {
	name string
	re   *regexp.Regexp
}

var sectionPatterns = []sectionPattern{
	{"business", regexp.MustCompile(`item\s+1\s*[.\-–]\s*business`)},
	{"risk_factors", regexp.MustCompile(`item\s+1a\s*[.\-–]\s*risk\s+factors`)},
	{"properties", regexp.MustCompile(`item\s+2\s*[.\-–]\s*properties`)},
	{"legal_proceedings", regexp.MustCompile(`item\s+3\s*[.\-–]\s*legal\s+proceedings`)},
	{"financial_data", regexp.MustCompile(`item\s+6\s*[.\-–]\s*selected\s+financial\s+data`)},
	{"md_a", regexp.MustCompile(`item\s+7\s*[.\-–]\s*management.?s\s+discussion\s+and\s+analysis`)},
	{"financial_statements", regexp.MustCompile(`item\s+8\s*[.\-–]\s*financial\s+statements`)},
	{"controls", regexp.MustCompile(`item\s+9a\s*[.\-–]\s*controls\s+and\s+procedures`)},
}

// ChunkerOptions 切分参数，单位为字符（rune）
type ChunkerOptions struct {
	MaxChunkSize int
	MinChunkSize int
	OverlapSize  int
}

// Chunker 按段落与句子边界切分已规范化的 10-K 文本
type Chunker struct {
	maxSize     int
	minSize     int
	overlapSize int
}

// NewChunker 创建切分器；片段大小非正数使用默认值，重叠为负数使用默认值
func NewChunker(opts ChunkerOptions) *Chunker {
	c := &Chunker{
		maxSize:     opts.MaxChunkSize,
		minSize:     opts.MinChunkSize,
		overlapSize: opts.OverlapSize,
	}
	if c.maxSize <= 0 {
		c.maxSize = defaultMaxChunkSize
	}
	if c.minSize <= 0 {
		c.minSize = defaultMinChunkSize
	}
	if c.overlapSize < 0 {
		c.overlapSize = defaultOverlapSize
	}
	return c
}

// ChunkDocument 切分一份文档；公司与年份从文件名 TICKER_10K_YEAR 解析
func (c *Chunker) ChunkDocument(sourceFile, content string) []Chunk {
	company, year := ParseFilingName(sourceFile)
	texts := c.addOverlap(c.smartChunk(content))

	out := make([]Chunk, 0, len(texts))
	start := 0
	for i, text := range texts {
		n := utf8.RuneCountInString(text)
		out = append(out, Chunk{
			ID:         ChunkID(sourceFile, i, text),
			Content:    text,
			Company:    company,
			Year:       year,
			Section:    IdentifySection(text),
			SourceFile: sourceFile,
			ChunkIndex: i,
			StartChar:  start,
			EndChar:    start + n,
			Metadata:   map[string]string{"source_type": "10-K"},
		})
		start += n
	}
	return out
}

// ParseFilingName 从文件名提取股票代码与年份，失败时返回 UNKNOWN/2023
func ParseFilingName(path string) (string, int) {
	m := filingNameRegex.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return unknownCompany, fallbackYear
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return unknownCompany, fallbackYear
	}
	return m[1], year
}

// IdentifySection 识别片段所属章节，未识别返回空串
func IdentifySection(text string) string {
	lower := strings.ToLower(text)
	for _, p := range sectionPatterns {
		if p.re.MatchString(lower) {
			return p.name
		}
	}
	return ""
}

// ChunkID 片段标识：md5(source)[:8]_序号_md5(content)[:8]，内容与位置不变则 ID 不变
func ChunkID(sourceFile string, index int, content string) string {
	return fmt.Sprintf("%s_%04d_%s", shortHash(sourceFile), index, shortHash(content))
}

func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

func splitParagraphs(text string) []string {
	parts := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) > minParagraphRunes {
			out = append(out, p)
		}
	}
	return out
}

// smartChunk 贪心合并段落，超长段落再按句子切分，最后丢弃过短片段
func (c *Chunker) smartChunk(text string) []string {
	var chunks []string
	current := ""

	for _, para := range splitParagraphs(text) {
		if runeLen(current)+runeLen(para) <= c.maxSize {
			if current != "" {
				current += "\n\n" + para
			} else {
				current = para
			}
			continue
		}

		if strings.TrimSpace(current) != "" {
			chunks = append(chunks, strings.TrimSpace(current))
		}
		current = para
		if runeLen(para) > c.maxSize {
			sub := c.splitLongParagraph(para)
			current = ""
			if len(sub) > 0 {
				chunks = append(chunks, sub[:len(sub)-1]...)
				current = sub[len(sub)-1]
			}
		}
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	out := chunks[:0]
	for _, ch := range chunks {
		if runeLen(ch) >= c.minSize {
			out = append(out, ch)
		}
	}
	return out
}

func (c *Chunker) splitLongParagraph(para string) []string {
	var chunks []string
	current := ""
	for _, sentence := range splitSentences(para) {
		if runeLen(current)+runeLen(sentence) > c.maxSize {
			if strings.TrimSpace(current) != "" {
				chunks = append(chunks, strings.TrimSpace(current))
			}
			current = sentence
			continue
		}
		if current != "" {
			current += " " + sentence
		} else {
			current = sentence
		}
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// splitSentences 在 . ! ? 之后的空白处断句
func splitSentences(s string) []string {
	var out []string
	runes := []rune(s)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// addOverlap 在片段前拼接上一片段末尾若干词
func (c *Chunker) addOverlap(chunks []string) []string {
	words := c.overlapSize / 10
	if len(chunks) <= 1 || words <= 0 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		if len(prev) <= minOverlapWords {
			out[i] = chunks[i]
			continue
		}
		n := words
		if n > len(prev) {
			n = len(prev)
		}
		out[i] = strings.Join(prev[len(prev)-n:], " ") + "\n\n" + chunks[i]
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

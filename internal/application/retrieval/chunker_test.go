package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paragraph(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func TestParseFilingName(t *testing.T) {
	company, year := ParseFilingName("/data/sec_filings/GOOGL_10K_2023.html")
	assert.Equal(t, "GOOGL", company)
	assert.Equal(t, 2023, year)

	company, year = ParseFilingName("notes.txt")
	assert.Equal(t, "UNKNOWN", company)
	assert.Equal(t, 2023, year)
}

func TestIdentifySection(t *testing.T) {
	assert.Equal(t, "risk_factors", IdentifySection("ITEM 1A. RISK FACTORS\nOur business..."))
	assert.Equal(t, "md_a", IdentifySection("Item 7 - Management's Discussion and Analysis of Financial Condition"))
	assert.Equal(t, "controls", IdentifySection("Item 9A. Controls and Procedures"))
	assert.Equal(t, "", IdentifySection("Revenue increased 12%."))
}

func TestChunkIDStable(t *testing.T) {
	a := ChunkID("MSFT_10K_2023.txt", 3, "hello")
	b := ChunkID("MSFT_10K_2023.txt", 3, "hello")
	c := ChunkID("MSFT_10K_2023.txt", 4, "hello")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^[0-9a-f]{8}_0003_[0-9a-f]{8}$`, a)
}

func TestChunkDocumentMergesParagraphs(t *testing.T) {
	c := NewChunker(ChunkerOptions{MaxChunkSize: 2000, MinChunkSize: 100, OverlapSize: 200})
	text := paragraph("alpha", 30) + "\n\n" + "tiny" + "\n\n" + paragraph("beta", 30)

	chunks := c.ChunkDocument("/x/MSFT_10K_2024.txt", text)
	require.Len(t, chunks, 1)

	ch := chunks[0]
	assert.Equal(t, paragraph("alpha", 30)+"\n\n"+paragraph("beta", 30), ch.Content)
	assert.Equal(t, "MSFT", ch.Company)
	assert.Equal(t, 2024, ch.Year)
	assert.Equal(t, 0, ch.ChunkIndex)
	assert.Equal(t, 0, ch.StartChar)
	assert.Equal(t, utf8.RuneCountInString(ch.Content), ch.EndChar)
	assert.Equal(t, "10-K", ch.Metadata["source_type"])
}

func TestChunkDocumentSplitsAndOverlaps(t *testing.T) {
	c := NewChunker(ChunkerOptions{MaxChunkSize: 300, MinChunkSize: 50, OverlapSize: 50})
	p1 := paragraph("one", 60) // 239 runes
	p2 := paragraph("two", 60) // 239 runes
	chunks := c.ChunkDocument("NVDA_10K_2022.txt", p1+"\n\n"+p2)

	require.Len(t, chunks, 2)
	assert.Equal(t, p1, chunks[0].Content)
	// 上一片段 60 词 > 20，取末尾 50/10 = 5 词
	assert.Equal(t, paragraph("one", 5)+"\n\n"+p2, chunks[1].Content)
	assert.Equal(t, chunks[0].EndChar, chunks[1].StartChar)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
}

func TestChunkDocumentSplitsLongParagraphAtSentences(t *testing.T) {
	c := NewChunker(ChunkerOptions{MaxChunkSize: 120, MinChunkSize: 10, OverlapSize: 0})
	s := "Revenue grew strongly across all segments this year."
	text := strings.Join([]string{s, s, s, s}, " ")

	chunks := c.ChunkDocument("GOOGL_10K_2023.txt", text)
	require.Len(t, chunks, 2)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Content), 120)
		assert.True(t, strings.HasSuffix(ch.Content, "."))
	}
}

func TestChunkDocumentDropsSmallChunks(t *testing.T) {
	c := NewChunker(ChunkerOptions{})
	assert.Empty(t, c.ChunkDocument("MSFT_10K_2023.txt", "A short paragraph only."))
	assert.Empty(t, c.ChunkDocument("MSFT_10K_2023.txt", ""))
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("One. Two!  Three? Four")
	assert.Equal(t, []string{"One.", "Two!", "Three?", "Four"}, got)
	assert.Equal(t, []string{"3.5 billion"}, splitSentences("3.5 billion"))
}

func TestMetadataRoundTrip(t *testing.T) {
	assert.Empty(t, EncodeMetadata(nil))
	assert.Nil(t, DecodeMetadata("not json"))
	meta := map[string]string{"source_type": "10-K"}
	assert.Equal(t, meta, DecodeMetadata(EncodeMetadata(meta)))
}

package milvus

import (
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"

	"fin-rag-api/internal/application/retrieval"
)

func TestBuildFilterExpr(t *testing.T) {
	assert.Equal(t, "", BuildFilterExpr("", 0, ""))
	assert.Equal(t, `company == "MSFT"`, BuildFilterExpr("MSFT", 0, ""))
	assert.Equal(t, `company == "MSFT" && year == 2023 && section == "md_a"`, BuildFilterExpr("MSFT", 2023, "md_a"))
	assert.Equal(t, `year == 2022`, BuildFilterExpr("", 2022, ""))
	assert.Equal(t, `section == "a\"b"`, BuildFilterExpr("", 0, `a"b`))
}

func TestFilingChunksSchema(t *testing.T) {
	s := FilingChunksSchema(384)
	assert.Equal(t, CollectionFilingChunks, s.CollectionName)
	assert.True(t, s.Fields[0].PrimaryKey)
	assert.Equal(t, entity.FieldTypeFloatVector, s.Fields[1].DataType)
	assert.Equal(t, "384", s.Fields[1].TypeParams["dim"])

	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	for _, want := range outputFields {
		assert.Contains(t, names, want)
	}
}

func TestChunkRowConversion(t *testing.T) {
	in := &retrieval.VectorChunk{
		Chunk: retrieval.Chunk{
			ID: "abc_0001_def", Content: "text", Company: "NVDA", Year: 2024, Section: "md_a",
			SourceFile: "NVDA_10K_2024.txt", ChunkIndex: 1, StartChar: 10, EndChar: 14,
			Metadata: map[string]string{"source_type": "10-K"},
		},
		Vector: []float32{0.1, 0.2},
	}
	row := chunkToRow(in)
	assert.Equal(t, int64(2024), row.Year)
	assert.JSONEq(t, `{"source_type":"10-K"}`, row.Metadata)

	back := rowToChunk(*row)
	assert.Equal(t, in.Chunk, back)
}

// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionFilingChunks 财报片段集合
	CollectionFilingChunks = "filing_chunks"

	fieldID         = "id"
	fieldVector     = "vector"
	fieldCompany    = "company"
	fieldYear       = "year"
	fieldSection    = "section"
	fieldSourceFile = "source_file"
	fieldChunkIndex = "chunk_index"
	fieldStartChar  = "start_char"
	fieldEndChar    = "end_char"
	fieldContent    = "content"
	fieldMetadata   = "metadata"
)

// outputFields 检索时返回的标量字段
var outputFields = []string{
	fieldID, fieldCompany, fieldYear, fieldSection, fieldSourceFile,
	fieldChunkIndex, fieldStartChar, fieldEndChar, fieldContent, fieldMetadata,
}

func varChar(name string, maxLen int) *entity.Field {
	return &entity.Field{
		Name:     name,
		DataType: entity.FieldTypeVarChar,
		TypeParams: map[string]string{
			"max_length": strconv.Itoa(maxLen),
		},
	}
}

func int64Field(name string) *entity.Field {
	return &entity.Field{Name: name, DataType: entity.FieldTypeInt64}
}

// FilingChunksSchema 财报片段 Collection Schema
func FilingChunksSchema(dimension int) *entity.Schema {
	id := varChar(fieldID, 64)
	id.PrimaryKey = true
	id.AutoID = false

	return &entity.Schema{
		CollectionName: CollectionFilingChunks,
		Description:    "SEC 10-K filing chunks for filtered semantic search",
		Fields: []*entity.Field{
			id,
			{
				Name:     fieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dimension),
				},
			},
			varChar(fieldCompany, 16),
			int64Field(fieldYear),
			varChar(fieldSection, 64),
			varChar(fieldSourceFile, 512),
			int64Field(fieldChunkIndex),
			int64Field(fieldStartChar),
			int64Field(fieldEndChar),
			varChar(fieldContent, 65535),
			varChar(fieldMetadata, 4096),
		},
	}
}

// ChunkRow 集合中的一行
type ChunkRow struct {
	ID         string
	Vector     []float32
	Company    string
	Year       int64
	Section    string
	SourceFile string
	ChunkIndex int64
	StartChar  int64
	EndChar    int64
	Content    string
	Metadata   string
}

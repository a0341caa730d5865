// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fin-rag-api/pkg/metrics"
)

const (
	// statsSampleLimit 统计分布时最多扫描的行数
	statsSampleLimit = 1000
	defaultSearchEf  = 128
)

// Repository 向量检索仓储
type Repository struct {
	client *Client
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// SearchParams 检索参数，过滤条件为空表示不过滤
type SearchParams struct {
	QueryVector []float32
	TopK        int
	Company     string
	Year        int64
	Section     string
}

// SearchResult 检索结果
type SearchResult struct {
	Row   ChunkRow
	Score float32
}

// DistributionSample 统计结果
type DistributionSample struct {
	RowCount  int64
	Companies map[string]int
	Years     map[int]int
	Sections  map[string]int
	Sampled   bool
}

func (r *Repository) ready() error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	return nil
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	schema.CollectionName = r.client.CollectionName(schema.CollectionName)

	if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := r.client.milvus.CreateIndex(ctx, r.client.CollectionName(collection), fieldVector, idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// EnsureFilingChunksCollection 确保 filing_chunks 集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureFilingChunksCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}

	exists, err := r.client.HasCollection(ctx, CollectionFilingChunks)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, FilingChunksSchema(r.client.dimension)); err != nil {
			return err
		}
		if err := r.CreateIndex(ctx, CollectionFilingChunks); err != nil {
			return err
		}
	}

	// 若已加载，Milvus 会直接返回成功
	return r.client.LoadCollection(ctx, CollectionFilingChunks)
}

// SearchChunks 带标量过滤的向量检索
func (r *Repository) SearchChunks(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchChunks",
		trace.WithAttributes(
			attribute.String("company", params.Company),
			attribute.Int64("year", params.Year),
			attribute.Int("top_k", params.TopK),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionFilingChunks)
	filter := BuildFilterExpr(params.Company, params.Year, params.Section)

	ef := r.client.config.SearchEf
	if ef <= 0 {
		ef = defaultSearchEf
	}
	if ef < params.TopK {
		ef = params.TopK
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	start := time.Now()
	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		filter,
		outputFields,
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		fieldVector,
		entity.COSINE,
		params.TopK,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(CollectionFilingChunks).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(CollectionFilingChunks, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionFilingChunks, "success").Inc()

	var out []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			out = append(out, &SearchResult{
				Row:   readRow(result.Fields, i),
				Score: result.Scores[i],
			})
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, nil
}

// UpsertChunks 按主键覆盖写入
func (r *Repository) UpsertChunks(ctx context.Context, rows []*ChunkRow) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.UpsertChunks",
		trace.WithAttributes(attribute.Int("count", len(rows))))
	defer span.End()

	if len(rows) == 0 {
		return nil
	}

	n := len(rows)
	ids := make([]string, n)
	vectors := make([][]float32, n)
	companies := make([]string, n)
	years := make([]int64, n)
	sections := make([]string, n)
	sources := make([]string, n)
	indexes := make([]int64, n)
	starts := make([]int64, n)
	ends := make([]int64, n)
	contents := make([]string, n)
	metas := make([]string, n)

	for i, row := range rows {
		if len(row.Vector) != r.client.dimension {
			return fmt.Errorf("chunk %s: vector dimension %d, want %d", row.ID, len(row.Vector), r.client.dimension)
		}
		ids[i] = row.ID
		vectors[i] = row.Vector
		companies[i] = row.Company
		years[i] = row.Year
		sections[i] = row.Section
		sources[i] = row.SourceFile
		indexes[i] = row.ChunkIndex
		starts[i] = row.StartChar
		ends[i] = row.EndChar
		contents[i] = row.Content
		metas[i] = row.Metadata
	}

	_, err := r.client.milvus.Upsert(ctx, r.client.CollectionName(CollectionFilingChunks), "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, r.client.dimension, vectors),
		entity.NewColumnVarChar(fieldCompany, companies),
		entity.NewColumnInt64(fieldYear, years),
		entity.NewColumnVarChar(fieldSection, sections),
		entity.NewColumnVarChar(fieldSourceFile, sources),
		entity.NewColumnInt64(fieldChunkIndex, indexes),
		entity.NewColumnInt64(fieldStartChar, starts),
		entity.NewColumnInt64(fieldEndChar, ends),
		entity.NewColumnVarChar(fieldContent, contents),
		entity.NewColumnVarChar(fieldMetadata, metas),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

// DeleteBySource 删除某个源文件的全部片段
func (r *Repository) DeleteBySource(ctx context.Context, sourceFile string) error {
	if err := r.ready(); err != nil {
		return err
	}
	sourceFile = strings.TrimSpace(sourceFile)
	if sourceFile == "" {
		return nil
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteBySource",
		trace.WithAttributes(attribute.String("source_file", sourceFile)))
	defer span.End()

	filter := fmt.Sprintf(`%s == %s`, fieldSourceFile, quote(sourceFile))
	if err := r.client.milvus.Delete(ctx, r.client.CollectionName(CollectionFilingChunks), "", filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// DropFilingChunksCollection 删除 filing_chunks 集合，不存在时直接返回
func (r *Repository) DropFilingChunksCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	name := r.client.CollectionName(CollectionFilingChunks)
	ctx, span := tracer.Start(ctx, "milvus.DropCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	exists, err := r.client.HasCollection(ctx, CollectionFilingChunks)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !exists {
		return nil
	}
	if err := r.client.milvus.DropCollection(ctx, name); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Distribution 统计行数及公司/年份/章节分布（分布最多扫描 statsSampleLimit 行）
func (r *Repository) Distribution(ctx context.Context) (*DistributionSample, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "milvus.Distribution")
	defer span.End()

	collName := r.client.CollectionName(CollectionFilingChunks)
	stats, err := r.client.milvus.GetCollectionStatistics(ctx, collName)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get collection statistics: %w", err)
	}
	rowCount, _ := strconv.ParseInt(stats["row_count"], 10, 64)

	rs, err := r.client.milvus.Query(ctx, collName, nil,
		fmt.Sprintf("%s >= 0", fieldChunkIndex),
		[]string{fieldCompany, fieldYear, fieldSection},
		client.WithLimit(statsSampleLimit),
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query distribution: %w", err)
	}

	out := &DistributionSample{
		RowCount:  rowCount,
		Companies: make(map[string]int),
		Years:     make(map[int]int),
		Sections:  make(map[string]int),
	}
	companies := varCharData(rs.GetColumn(fieldCompany))
	years := int64Data(rs.GetColumn(fieldYear))
	sections := varCharData(rs.GetColumn(fieldSection))
	for i := range companies {
		out.Companies[companies[i]]++
		if i < len(years) {
			out.Years[int(years[i])]++
		}
		if i < len(sections) && sections[i] != "" {
			out.Sections[sections[i]]++
		}
	}
	out.Sampled = int64(len(companies)) < rowCount
	return out, nil
}

// BuildFilterExpr 构建 AND 过滤表达式；无条件时返回空串
func BuildFilterExpr(company string, year int64, section string) string {
	var parts []string
	if company != "" {
		parts = append(parts, fmt.Sprintf(`%s == %s`, fieldCompany, quote(company)))
	}
	if year != 0 {
		parts = append(parts, fmt.Sprintf(`%s == %d`, fieldYear, year))
	}
	if section != "" {
		parts = append(parts, fmt.Sprintf(`%s == %s`, fieldSection, quote(section)))
	}
	return strings.Join(parts, " && ")
}

// quote 生成表达式中的字符串字面量，转义引号与反斜杠
func quote(s string) string {
	return strconv.Quote(s)
}

func readRow(fields client.ResultSet, i int) ChunkRow {
	var row ChunkRow
	row.ID = varCharAt(fields.GetColumn(fieldID), i)
	row.Company = varCharAt(fields.GetColumn(fieldCompany), i)
	row.Year = int64At(fields.GetColumn(fieldYear), i)
	row.Section = varCharAt(fields.GetColumn(fieldSection), i)
	row.SourceFile = varCharAt(fields.GetColumn(fieldSourceFile), i)
	row.ChunkIndex = int64At(fields.GetColumn(fieldChunkIndex), i)
	row.StartChar = int64At(fields.GetColumn(fieldStartChar), i)
	row.EndChar = int64At(fields.GetColumn(fieldEndChar), i)
	row.Content = varCharAt(fields.GetColumn(fieldContent), i)
	row.Metadata = varCharAt(fields.GetColumn(fieldMetadata), i)
	return row
}

func varCharData(col entity.Column) []string {
	if c, ok := col.(*entity.ColumnVarChar); ok {
		return c.Data()
	}
	return nil
}

func int64Data(col entity.Column) []int64 {
	if c, ok := col.(*entity.ColumnInt64); ok {
		return c.Data()
	}
	return nil
}

func varCharAt(col entity.Column, i int) string {
	data := varCharData(col)
	if i < len(data) {
		return data[i]
	}
	return ""
}

func int64At(col entity.Column, i int) int64 {
	data := int64Data(col)
	if i < len(data) {
		return data[i]
	}
	return 0
}

package vectorstore

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/user/cinesense/internal/config"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Index 封装 Qdrant 向量集合：生命周期管理、负载字段索引、写入与过滤检索
type Index struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
}

// NewIndex 创建向量索引客户端
func NewIndex(cfg config.QdrantConfig, dimension int) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.GRPCPort,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("连接 Qdrant 失败: %w", err)
	}

	return &Index{
		client:     client,
		collection: cfg.Collection,
		dimension:  uint64(dimension),
	}, nil
}

// EnsureCollection 确保集合存在，已存在时为无操作（幂等）
func (idx *Index) EnsureCollection(ctx context.Context) error {
	exists, err := idx.client.CollectionExists(ctx, idx.collection)
	if err != nil {
		return fmt.Errorf("检查集合失败: %w", err)
	}
	if exists {
		return nil
	}

	err = idx.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: idx.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     idx.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("创建集合失败: %w", err)
	}
	log.Printf("[VectorStore] 已创建集合 %s (dim=%d, distance=cosine)", idx.collection, idx.dimension)

	return idx.CreateFilterIndexes(ctx)
}

// RecreateCollection 删除并重建集合（危险操作，与幂等路径分开）
func (idx *Index) RecreateCollection(ctx context.Context) error {
	exists, err := idx.client.CollectionExists(ctx, idx.collection)
	if err != nil {
		return fmt.Errorf("检查集合失败: %w", err)
	}
	if exists {
		if err := idx.client.DeleteCollection(ctx, idx.collection); err != nil {
			return fmt.Errorf("删除集合失败: %w", err)
		}
		log.Printf("[VectorStore] 已删除集合 %s", idx.collection)
	}
	return idx.EnsureCollection(ctx)
}

// CreateFilterIndexes 为常用过滤字段建负载索引
// 索引构建不阻塞已有写入（Wait=false）
func (idx *Index) CreateFilterIndexes(ctx context.Context) error {
	fields := []struct {
		name      string
		fieldType qdrant.FieldType
	}{
		{"year", qdrant.FieldType_FieldTypeInteger},
		{"rating", qdrant.FieldType_FieldTypeFloat},
		{"genre_ids", qdrant.FieldType_FieldTypeKeyword},
	}

	for _, f := range fields {
		_, err := idx.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: idx.collection,
			FieldName:      f.name,
			FieldType:      f.fieldType.Enum(),
			Wait:           qdrant.PtrOf(false),
		})
		if err != nil {
			return fmt.Errorf("创建负载索引 %s 失败: %w", f.name, err)
		}
	}
	log.Printf("[VectorStore] 已创建负载索引: year, rating, genre_ids")
	return nil
}

// Upsert 批量写入向量点，同 ID 的点被整体替换，可安全重试
func (idx *Index) Upsert(ctx context.Context, points []ReviewPoint) error {
	if len(points) == 0 {
		return nil
	}

	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Uuid{Uuid: p.ID.String()},
			},
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: encodePayload(p.Payload),
		})
	}

	_, err := idx.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: idx.collection,
		Points:         qpoints,
		// 等待落盘，保证调用返回即写入完整生效
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return idx.wrapNotFound(err, "写入向量点失败")
	}
	return nil
}

// Search 余弦相似度检索，按负载条件过滤，返回得分不低于阈值的前 Limit 个点
func (idx *Index) Search(ctx context.Context, vector []float32, params SearchParams) ([]ScoredReview, error) {
	query := &qdrant.QueryPoints{
		CollectionName: idx.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(params.Limit),
		ScoreThreshold: qdrant.PtrOf(params.ScoreThreshold),
		Filter:         buildFilter(params.Filter),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	}

	hits, err := idx.client.Query(ctx, query)
	if err != nil {
		return nil, idx.wrapNotFound(err, "向量检索失败")
	}

	results := make([]ScoredReview, 0, len(hits))
	for _, hit := range hits {
		reviewID, err := uuid.Parse(hit.GetId().GetUuid())
		if err != nil {
			// 点 ID 必须是影评 UUID，异常点跳过并记录
			log.Printf("[VectorStore] 非法向量点 ID: %q", hit.GetId().GetUuid())
			continue
		}
		results = append(results, ScoredReview{
			ReviewID: reviewID,
			Score:    hit.GetScore(),
			Payload:  decodePayload(hit.GetPayload()),
		})
	}
	return results, nil
}

// PointsCount 集合内向量点数量
func (idx *Index) PointsCount(ctx context.Context) (uint64, error) {
	info, err := idx.client.GetCollectionInfo(ctx, idx.collection)
	if err != nil {
		return 0, idx.wrapNotFound(err, "获取集合信息失败")
	}
	return info.GetPointsCount(), nil
}

// Close 关闭底层 gRPC 连接
func (idx *Index) Close() error {
	return idx.client.Close()
}

// wrapNotFound 集合缺失按配置错误单独上报
func (idx *Index) wrapNotFound(err error, msg string) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", ErrCollectionMissing, idx.collection)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// buildFilter 将数值条件转换为 Qdrant 合取过滤器，无条件时返回 nil
func buildFilter(f SearchFilter) *qdrant.Filter {
	var must []*qdrant.Condition

	if f.MinYear != nil {
		must = append(must, rangeCondition("year", &qdrant.Range{
			Gte: qdrant.PtrOf(float64(*f.MinYear)),
		}))
	}
	if f.MaxYear != nil {
		must = append(must, rangeCondition("year", &qdrant.Range{
			Lte: qdrant.PtrOf(float64(*f.MaxYear)),
		}))
	}
	if f.MinRating != nil {
		must = append(must, rangeCondition("rating", &qdrant.Range{
			Gte: qdrant.PtrOf(*f.MinRating),
		}))
	}

	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func rangeCondition(key string, r *qdrant.Range) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: key, Range: r},
		},
	}
}

// encodePayload 负载编码为 Qdrant Value 映射
func encodePayload(p PointPayload) map[string]*qdrant.Value {
	genreValues := make([]*qdrant.Value, 0, len(p.GenreIDs))
	for _, gid := range p.GenreIDs {
		genreValues = append(genreValues, &qdrant.Value{
			Kind: &qdrant.Value_StringValue{StringValue: gid},
		})
	}

	return map[string]*qdrant.Value{
		"movie_id":    {Kind: &qdrant.Value_StringValue{StringValue: p.MovieID.String()}},
		"movie_title": {Kind: &qdrant.Value_StringValue{StringValue: p.MovieTitle}},
		"rating":      {Kind: &qdrant.Value_DoubleValue{DoubleValue: p.Rating}},
		"year":        {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(p.Year)}},
		"genre_ids":   {Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: genreValues}}},
		"source":      {Kind: &qdrant.Value_StringValue{StringValue: p.Source}},
	}
}

// decodePayload 从 Qdrant Value 映射还原负载
// movie_id 解析失败时保持零值，由查询端按失效引用处理
func decodePayload(values map[string]*qdrant.Value) PointPayload {
	p := PointPayload{
		MovieTitle: values["movie_title"].GetStringValue(),
		Rating:     values["rating"].GetDoubleValue(),
		Year:       int(values["year"].GetIntegerValue()),
		Source:     values["source"].GetStringValue(),
	}
	if id, err := uuid.Parse(values["movie_id"].GetStringValue()); err == nil {
		p.MovieID = id
	}
	for _, v := range values["genre_ids"].GetListValue().GetValues() {
		p.GenreIDs = append(p.GenreIDs, v.GetStringValue())
	}
	return p
}

package vectorstore

import (
	"errors"

	"github.com/google/uuid"
)

// ErrCollectionMissing 集合不存在，属于配置错误
// 区别于"集合存在但为空"（后者返回零结果，不报错）
var ErrCollectionMissing = errors.New("vector collection missing")

// PointPayload 向量点负载，冗余存储可过滤的电影属性
// movie_id 用于回关系库做关联查询；类型以 ID 字符串存储，
// 向量服务只做精确/范围匹配，类型名过滤由调用方在查询后执行
type PointPayload struct {
	MovieID    uuid.UUID
	MovieTitle string
	Rating     float64
	Year       int
	GenreIDs   []string
	Source     string
}

// ReviewPoint 一条影评对应的向量点，点 ID 即影评 ID
type ReviewPoint struct {
	ID      uuid.UUID
	Vector  []float32
	Payload PointPayload
}

// ScoredReview 检索命中的向量点及相似度得分
type ScoredReview struct {
	ReviewID uuid.UUID
	Score    float32
	Payload  PointPayload
}

// SearchFilter 下推到向量服务的过滤条件（仅数值范围/精确匹配）
type SearchFilter struct {
	MinYear   *int
	MaxYear   *int
	MinRating *float64
}

// SearchParams 向量检索参数
type SearchParams struct {
	Limit          uint64
	ScoreThreshold float32
	Filter         SearchFilter
}

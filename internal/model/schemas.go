package model

// SearchRequest 语义搜索请求
// 年份、评分范围下推到向量库过滤；类型名过滤在关联查询后于客户端执行
type SearchRequest struct {
	Query     string   `json:"query" validate:"required,min=2,max=500"`
	Limit     int      `json:"limit" validate:"omitempty,gte=1,lte=50"`
	MinYear   *int     `json:"min_year" validate:"omitempty,gte=1900,lte=2100"`
	MaxYear   *int     `json:"max_year" validate:"omitempty,gte=1900,lte=2100"`
	Genres    []string `json:"genres"`
	MinRating *float64 `json:"min_rating" validate:"omitempty,gte=0,lte=10"`
}

// SearchResultItem 单条搜索结果
type SearchResultItem struct {
	MovieID    string   `json:"movie_id"`
	Title      string   `json:"title"`
	Score      float64  `json:"score"`
	Year       int      `json:"year,omitempty"`
	PosterPath string   `json:"poster_path,omitempty"`
	Overview   string   `json:"overview,omitempty"`
	Genres     []string `json:"genres"`
}

// SearchResponse 语义搜索响应
type SearchResponse struct {
	Query        string             `json:"query"`
	TotalResults int                `json:"total_results"`
	Results      []SearchResultItem `json:"results"`
}

// MovieListResponse 分页电影列表响应
type MovieListResponse struct {
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Movies   []Movie `json:"movies"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status         string `json:"status"`
	PostgresOK     bool   `json:"postgres_connected"`
	QdrantOK       bool   `json:"qdrant_connected"`
	EmbeddingModel string `json:"embedding_model"`
	MoviesCount    int64  `json:"movies_count"`
	VectorsCount   uint64 `json:"vectors_count"`
}

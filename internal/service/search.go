package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/user/cinesense/internal/embedding"
	"github.com/user/cinesense/internal/model"
	"github.com/user/cinesense/internal/repository"
	"github.com/user/cinesense/internal/utils"
	"github.com/user/cinesense/internal/vectorstore"
	"golang.org/x/sync/singleflight"
)

// ErrValidation 请求参数非法
var ErrValidation = errors.New("搜索请求参数非法")

const (
	// 默认返回条数
	defaultSearchLimit = 10
	// 相似度阈值，低于此分数的命中直接丢弃
	defaultScoreThreshold = 0.3
	// 搜索结果缓存时间
	searchCacheTTL = 5 * time.Minute
	// 摘要截断长度（字符数）
	overviewMaxLen = 200
)

// VectorSearcher 向量检索接口，由 vectorstore.Index 实现
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, params vectorstore.SearchParams) ([]vectorstore.ScoredReview, error)
}

// SearchService 语义搜索服务
// 流程：向量化查询 → 向量库超额检索 → 按电影去重取最高分 → 回关系库补全 → 客户端类型过滤
type SearchService struct {
	embedder embedding.Embedder
	vectors  VectorSearcher
	movies   *repository.MovieRepository
	validate *validator.Validate

	cache *utils.TTLCache[*model.SearchResponse]
	group singleflight.Group

	// 超额检索倍数：影评命中按电影去重会缩水，检索 limit*N 条保证去重后够数
	// 当倍数仍不足以覆盖去重损失时结果可能偏少，属已知权衡
	OverfetchFactor int
	ScoreThreshold  float32
}

// NewSearchService 创建搜索服务
func NewSearchService(embedder embedding.Embedder, vectors VectorSearcher, movies *repository.MovieRepository) *SearchService {
	return &SearchService{
		embedder:        embedder,
		vectors:         vectors,
		movies:          movies,
		validate:        validator.New(),
		cache:           utils.NewTTLCache[*model.SearchResponse](512, searchCacheTTL),
		OverfetchFactor: 3,
		ScoreThreshold:  defaultScoreThreshold,
	}
}

// Search 执行语义搜索
// 零命中返回空结果集而非错误；集合缺失返回 ErrCollectionMissing
func (s *SearchService) Search(ctx context.Context, req *model.SearchRequest) (*model.SearchResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.MinYear != nil && req.MaxYear != nil && *req.MinYear > *req.MaxYear {
		return nil, fmt.Errorf("%w: 年份区间颠倒", ErrValidation)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	// 查询文本和入库文本走同一套清洗；
	// 缓存键用清洗后的文本，大小写或空白不同的同义查询命中同一条目
	normalized := utils.Normalize(req.Query, utils.DefaultNormalizeOptions())
	key := cacheKey(normalized, req, limit)
	if cached, ok := s.cache.Get(key); ok {
		return echoQuery(cached, req.Query), nil
	}

	// 相同查询并发只落一次后端
	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		resp, err := s.doSearch(ctx, req, normalized, limit)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return echoQuery(result.(*model.SearchResponse), req.Query), nil
}

// echoQuery 响应回显当前请求的原始查询文本
// 缓存按清洗后文本共享，命中者的原文可能与首次写入者不同
func echoQuery(resp *model.SearchResponse, query string) *model.SearchResponse {
	if resp.Query == query {
		return resp
	}
	out := *resp
	out.Query = query
	return &out
}

func (s *SearchService) doSearch(ctx context.Context, req *model.SearchRequest, normalized string, limit int) (*model.SearchResponse, error) {
	start := time.Now()

	vector, err := s.embedder.EmbedOne(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	hits, err := s.vectors.Search(ctx, vector, vectorstore.SearchParams{
		Limit:          uint64(limit * s.OverfetchFactor),
		ScoreThreshold: s.ScoreThreshold,
		Filter: vectorstore.SearchFilter{
			MinYear:   req.MinYear,
			MaxYear:   req.MaxYear,
			MinRating: req.MinRating,
		},
	})
	if err != nil {
		return nil, err
	}

	// 按电影去重，保留该电影所有影评命中里的最高分
	best := make(map[uuid.UUID]float32, len(hits))
	var order []uuid.UUID
	for _, hit := range hits {
		if hit.Payload.MovieID == uuid.Nil {
			continue
		}
		if score, ok := best[hit.Payload.MovieID]; !ok {
			best[hit.Payload.MovieID] = hit.Score
			order = append(order, hit.Payload.MovieID)
		} else if hit.Score > score {
			best[hit.Payload.MovieID] = hit.Score
		}
	}

	// 截断之前必须按分数排序，map 遍历顺序不可依赖
	sort.SliceStable(order, func(i, j int) bool {
		return best[order[i]] > best[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}

	items, err := s.hydrate(req, order, best)
	if err != nil {
		return nil, err
	}

	log.Printf("[Search] 查询 %q: 命中 %d 条影评, 返回 %d 部电影, 耗时 %v",
		req.Query, len(hits), len(items), time.Since(start))

	return &model.SearchResponse{
		Query:        req.Query,
		TotalResults: len(items),
		Results:      items,
	}, nil
}

// hydrate 回关系库补全电影详情并做类型名过滤
// 向量库里残留但关系库已删除的电影静默跳过
func (s *SearchService) hydrate(req *model.SearchRequest, order []uuid.UUID, best map[uuid.UUID]float32) ([]model.SearchResultItem, error) {
	// 空结果也返回定型的切片，序列化为 [] 而非 null
	items := make([]model.SearchResultItem, 0, len(order))
	if len(order) == 0 {
		return items, nil
	}

	movieMap, err := s.movies.FindByIDs(order)
	if err != nil {
		return nil, fmt.Errorf("回查电影失败: %w", err)
	}

	wantGenres := make(map[string]struct{}, len(req.Genres))
	for _, g := range req.Genres {
		wantGenres[strings.ToLower(strings.TrimSpace(g))] = struct{}{}
	}

	for _, movieID := range order {
		movie, ok := movieMap[movieID]
		if !ok {
			log.Printf("[Search] 向量命中的电影 %s 在关系库缺失，已跳过", movieID)
			continue
		}

		genreNames := movie.GenreNames()
		if len(wantGenres) > 0 && !matchAnyGenre(genreNames, wantGenres) {
			continue
		}

		items = append(items, model.SearchResultItem{
			MovieID:    movie.ID.String(),
			Title:      movie.Title,
			Score:      roundScore(best[movieID]),
			Year:       movie.Year(),
			PosterPath: movie.PosterPath,
			Overview:   truncateOverview(movie.Overview),
			Genres:     genreNames,
		})
	}
	return items, nil
}

// matchAnyGenre 电影类型与请求类型有交集即保留，忽略大小写
func matchAnyGenre(genreNames []string, want map[string]struct{}) bool {
	for _, name := range genreNames {
		if _, ok := want[strings.ToLower(name)]; ok {
			return true
		}
	}
	return false
}

// roundScore 相似度保留 4 位小数
func roundScore(score float32) float64 {
	return math.Round(float64(score)*10000) / 10000
}

// truncateOverview 摘要超长时截断并加省略号
func truncateOverview(overview string) string {
	runes := []rune(overview)
	if len(runes) <= overviewMaxLen {
		return overview
	}
	return string(runes[:overviewMaxLen]) + "..."
}

// cacheKey 缓存键覆盖全部影响结果的请求字段，查询部分取清洗后文本
func cacheKey(normalized string, req *model.SearchRequest, limit int) string {
	var b strings.Builder
	b.WriteString(normalized)
	fmt.Fprintf(&b, "|l=%d", limit)
	if req.MinYear != nil {
		fmt.Fprintf(&b, "|y0=%d", *req.MinYear)
	}
	if req.MaxYear != nil {
		fmt.Fprintf(&b, "|y1=%d", *req.MaxYear)
	}
	if req.MinRating != nil {
		fmt.Fprintf(&b, "|r=%.2f", *req.MinRating)
	}
	if len(req.Genres) > 0 {
		genres := append([]string(nil), req.Genres...)
		sort.Strings(genres)
		fmt.Fprintf(&b, "|g=%s", strings.Join(genres, ","))
	}
	return b.String()
}

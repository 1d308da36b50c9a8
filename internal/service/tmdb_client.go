package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/user/cinesense/internal/config"
)

const genreCacheKey = "tmdb:genres"

// TMDBGenre TMDB 类型条目
type TMDBGenre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TMDBMovie TMDB 电影条目
type TMDBMovie struct {
	TMDBID        int
	Title         string
	OriginalTitle string
	Overview      string
	ReleaseDate   *time.Time
	PosterPath    string
	BackdropPath  string
	VoteAverage   float64
	VoteCount     int
	Popularity    float64
	GenreIDs      []int
}

// TMDBReview TMDB 影评条目
type TMDBReview struct {
	ID         string
	Author     string
	AuthorName string
	Content    string
	Rating     *float64
	AvatarPath string
	CreatedAt  string
	URL        string
}

// tmdbMovieJSON 电影接口原始响应
type tmdbMovieJSON struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	ReleaseDate   string  `json:"release_date"`
	PosterPath    string  `json:"poster_path"`
	BackdropPath  string  `json:"backdrop_path"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	Popularity    float64 `json:"popularity"`
	GenreIDs      []int   `json:"genre_ids"`
}

func (m tmdbMovieJSON) toMovie() TMDBMovie {
	movie := TMDBMovie{
		TMDBID:        m.ID,
		Title:         m.Title,
		OriginalTitle: m.OriginalTitle,
		Overview:      m.Overview,
		PosterPath:    m.PosterPath,
		BackdropPath:  m.BackdropPath,
		VoteAverage:   m.VoteAverage,
		VoteCount:     m.VoteCount,
		Popularity:    m.Popularity,
		GenreIDs:      m.GenreIDs,
	}
	// 上映日期缺失或格式非法时置空，不报错
	if m.ReleaseDate != "" {
		if t, err := time.Parse("2006-01-02", m.ReleaseDate); err == nil {
			movie.ReleaseDate = &t
		}
	}
	return movie
}

// tmdbReviewJSON 影评接口原始响应，评分和头像嵌在 author_details 里
type tmdbReviewJSON struct {
	ID            string `json:"id"`
	Author        string `json:"author"`
	AuthorDetails struct {
		Name       string   `json:"name"`
		AvatarPath string   `json:"avatar_path"`
		Rating     *float64 `json:"rating"`
	} `json:"author_details"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	URL       string `json:"url"`
}

func (r tmdbReviewJSON) toReview() TMDBReview {
	authorName := r.AuthorDetails.Name
	if authorName == "" {
		authorName = r.Author
	}
	return TMDBReview{
		ID:         r.ID,
		Author:     r.Author,
		AuthorName: authorName,
		Content:    r.Content,
		Rating:     r.AuthorDetails.Rating,
		AvatarPath: r.AuthorDetails.AvatarPath,
		CreatedAt:  r.CreatedAt,
		URL:        r.URL,
	}
}

// TMDBClient TMDB API 客户端
// 请求间隔固定的最小延迟；429 按服务端 Retry-After 等待后重试，
// 且不消耗常规重试次数；其余瞬时错误有界重试后向上传播
type TMDBClient struct {
	cfg        config.TMDBConfig
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time

	// 类型表在客户端生命周期内取一次并缓存
	cache *gocache.Cache
}

// NewTMDBClient 创建 TMDB 客户端
func NewTMDBClient(cfg config.TMDBConfig) (*TMDBClient, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("缺少 TMDB_TOKEN 配置")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &TMDBClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      gocache.New(gocache.NoExpiration, 0),
	}, nil
}

// pace 保证相邻两次请求之间至少间隔 RequestDelay
func (c *TMDBClient) pace(ctx context.Context) error {
	c.mu.Lock()
	wait := c.cfg.RequestDelay - time.Since(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// getJSON 发送 GET 请求并解析 JSON，内置限速、429 处理和有界重试
func (c *TMDBClient) getJSON(ctx context.Context, endpoint string, params url.Values, target interface{}) error {
	reqURL := c.cfg.BaseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; {
		if err := c.pace(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("创建请求失败: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// 传输层错误按瞬时错误处理
			lastErr = fmt.Errorf("请求 %s 失败: %w", endpoint, err)
			attempt++
			continue
		}

		// 429：按服务端指定时长等待后重试，不计入重试预算
		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			log.Printf("[TMDB] 触发限流，等待 %v 后重试: %s", wait, endpoint)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("请求 %s 失败，状态码: %d", endpoint, resp.StatusCode)
			attempt++
			continue
		}

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			// 4xx 属于请求本身的问题，重试无意义
			return fmt.Errorf("请求 %s 被拒绝，状态码: %d", endpoint, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(target)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
		return nil
	}

	return fmt.Errorf("重试 %d 次后仍失败: %w", c.cfg.MaxRetries, lastErr)
}

// retryAfter 解析 Retry-After 头，缺失时使用默认值
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 10 * time.Second
}

// GetGenres 获取类型表，客户端生命周期内只请求一次
func (c *TMDBClient) GetGenres(ctx context.Context) ([]TMDBGenre, error) {
	if cached, ok := c.cache.Get(genreCacheKey); ok {
		return cached.([]TMDBGenre), nil
	}

	var result struct {
		Genres []TMDBGenre `json:"genres"`
	}
	params := url.Values{"language": {c.cfg.Language}}
	if err := c.getJSON(ctx, "/genre/movie/list", params, &result); err != nil {
		return nil, err
	}

	c.cache.Set(genreCacheKey, result.Genres, gocache.NoExpiration)
	log.Printf("[TMDB] 已获取 %d 个类型", len(result.Genres))
	return result.Genres, nil
}

// moviePage 电影发现接口的分页响应
type moviePage struct {
	Page       int             `json:"page"`
	Results    []tmdbMovieJSON `json:"results"`
	TotalPages int             `json:"total_pages"`
}

func (c *TMDBClient) fetchMoviePage(ctx context.Context, endpoint string, page int) ([]TMDBMovie, int, error) {
	params := url.Values{
		"language": {c.cfg.Language},
		"page":     {strconv.Itoa(page)},
	}
	var result moviePage
	if err := c.getJSON(ctx, endpoint, params, &result); err != nil {
		return nil, 0, err
	}

	movies := make([]TMDBMovie, 0, len(result.Results))
	for _, m := range result.Results {
		movies = append(movies, m.toMovie())
	}
	return movies, result.TotalPages, nil
}

// GetPopularMovies 按页获取热门电影（每页 20 部）
func (c *TMDBClient) GetPopularMovies(ctx context.Context, page int) ([]TMDBMovie, error) {
	movies, _, err := c.fetchMoviePage(ctx, "/movie/popular", page)
	return movies, err
}

// GetTopRatedMovies 按页获取高分电影（每页 20 部）
func (c *TMDBClient) GetTopRatedMovies(ctx context.Context, page int) ([]TMDBMovie, error) {
	movies, _, err := c.fetchMoviePage(ctx, "/movie/top_rated", page)
	return movies, err
}

// GetMovieReviews 获取单部电影的影评，最多 maxPages 页，
// 提前到达源端报告的最后一页时停止
func (c *TMDBClient) GetMovieReviews(ctx context.Context, movieID int, maxPages int) ([]TMDBReview, error) {
	var all []TMDBReview

	for page := 1; page <= maxPages; page++ {
		var result struct {
			Page       int              `json:"page"`
			Results    []tmdbReviewJSON `json:"results"`
			TotalPages int              `json:"total_pages"`
		}
		params := url.Values{"page": {strconv.Itoa(page)}}
		endpoint := fmt.Sprintf("/movie/%d/reviews", movieID)
		if err := c.getJSON(ctx, endpoint, params, &result); err != nil {
			return nil, err
		}

		for _, r := range result.Results {
			all = append(all, r.toReview())
		}

		if page >= result.TotalPages {
			break
		}
	}
	return all, nil
}

// DiscoverMovies 遍历发现接口，逐部电影回调 fn
// 走完页数预算、提前到达源端最后一页、回调返回错误或 ctx 取消时停止
func (c *TMDBClient) DiscoverMovies(ctx context.Context, pages int, source string, fn func(TMDBMovie) error) error {
	endpoint := "/movie/popular"
	if source == "top_rated" {
		endpoint = "/movie/top_rated"
	}

	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		movies, totalPages, err := c.fetchMoviePage(ctx, endpoint, page)
		if err != nil {
			return err
		}
		for _, movie := range movies {
			if err := fn(movie); err != nil {
				return err
			}
		}

		if page%10 == 0 {
			log.Printf("[TMDB] 发现进度: %d/%d 页", page, pages)
		}
		if page >= totalPages {
			break
		}
	}
	return nil
}

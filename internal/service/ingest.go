package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/user/cinesense/internal/config"
	"github.com/user/cinesense/internal/embedding"
	"github.com/user/cinesense/internal/model"
	"github.com/user/cinesense/internal/repository"
	"github.com/user/cinesense/internal/utils"
	"github.com/user/cinesense/internal/vectorstore"
	"gorm.io/gorm"
)

// ReviewSource 摄取数据源，由 TMDBClient 实现
type ReviewSource interface {
	GetGenres(ctx context.Context) ([]TMDBGenre, error)
	DiscoverMovies(ctx context.Context, pages int, source string, fn func(TMDBMovie) error) error
	GetMovieReviews(ctx context.Context, movieID int, maxPages int) ([]TMDBReview, error)
}

// VectorWriter 向量写入接口，由 vectorstore.Index 实现
type VectorWriter interface {
	Upsert(ctx context.Context, points []vectorstore.ReviewPoint) error
}

// ProcessedUnit 一个摄取单元（一部电影及其入库影评）落库后的不可变记录，
// 跨越"关系库已提交 → 向量待写入"的阶段边界
type ProcessedUnit struct {
	MovieID    uuid.UUID
	MovieTitle string
	ReviewIDs  []uuid.UUID
	Contents   []string
	Ratings    []float64
	GenreIDs   []int
	Year       int
	Source     string
}

// rawUnit 从外部源取回、尚未落库的摄取单元
type rawUnit struct {
	movie   TMDBMovie
	reviews []TMDBReview
}

// RunOptions 摄取运行参数
type RunOptions struct {
	// 发现页数（每页 20 部电影）
	Pages int
	// 每部电影最多取多少条影评
	MaxReviewsPerMovie int
	// 发现端点: popular / top_rated
	Source string
}

// RunStats 摄取运行统计
type RunStats struct {
	Movies  int
	Reviews int
	Vectors int
	Skipped int
}

// IngestionPipeline 数据摄取管道
// 单元顺序：关系库事务提交在前，向量写入在后，
// 保证任何时刻向量点的影评 ID 都已存在于关系库
type IngestionPipeline struct {
	db       *gorm.DB
	repos    *repository.Repositories
	source   ReviewSource
	embedder embedding.Embedder
	vectors  VectorWriter
	cfg      config.ETLConfig

	embedBatchSize int
	normOpts       utils.NormalizeOptions
}

// NewIngestionPipeline 创建摄取管道
func NewIngestionPipeline(
	db *gorm.DB,
	repos *repository.Repositories,
	source ReviewSource,
	embedder embedding.Embedder,
	vectors VectorWriter,
	cfg config.ETLConfig,
	embedBatchSize int,
) *IngestionPipeline {
	if cfg.CommitBatchSize <= 0 {
		cfg.CommitBatchSize = 50
	}
	if cfg.MinReviewLength <= 0 {
		cfg.MinReviewLength = 20
	}
	return &IngestionPipeline{
		db:             db,
		repos:          repos,
		source:         source,
		embedder:       embedder,
		vectors:        vectors,
		cfg:            cfg,
		embedBatchSize: embedBatchSize,
		normOpts:       utils.DefaultNormalizeOptions(),
	}
}

// Run 执行摄取：发现电影 → 取影评 → 批量落库 → 向量化写入
// 单元间可随时中断；重跑安全，靠 TMDB ID 幂等跳过已入库电影
func (p *IngestionPipeline) Run(ctx context.Context, opts RunOptions) (*RunStats, error) {
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	if opts.MaxReviewsPerMovie <= 0 {
		opts.MaxReviewsPerMovie = p.cfg.MaxReviewsPerMovie
	}
	if opts.MaxReviewsPerMovie <= 0 {
		opts.MaxReviewsPerMovie = 10
	}
	if opts.Source == "" {
		opts.Source = "popular"
	}

	log.Printf("[Ingest] 开始摄取: %d 页 (~%d 部电影)", opts.Pages, opts.Pages*20)

	// 先加载类型表并落库
	genreMap, err := p.loadGenres(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载类型表失败: %w", err)
	}

	stats := &RunStats{}
	var batch []rawUnit

	err = p.source.DiscoverMovies(ctx, opts.Pages, opts.Source, func(movie TMDBMovie) error {
		// 单元之间检查取消，保证可中断且两侧存储不会写坏
		if err := ctx.Err(); err != nil {
			return err
		}

		exists, err := p.repos.Movie.ExistsByTMDBID(movie.TMDBID)
		if err != nil {
			return err
		}
		if exists {
			// 重跑时已入库的电影整体跳过，不做更新
			stats.Skipped++
			return nil
		}

		// 影评拉取失败只放弃当前单元，不中断整次运行
		maxPages := opts.MaxReviewsPerMovie/20 + 1
		reviews, err := p.source.GetMovieReviews(ctx, movie.TMDBID, maxPages)
		if err != nil {
			log.Printf("[Ingest] 获取影评失败，跳过电影 %q: %v", movie.Title, err)
			return nil
		}
		if len(reviews) > opts.MaxReviewsPerMovie {
			reviews = reviews[:opts.MaxReviewsPerMovie]
		}

		batch = append(batch, rawUnit{movie: movie, reviews: reviews})

		if len(batch) >= p.cfg.CommitBatchSize {
			if err := p.flushBatch(ctx, batch, genreMap, stats); err != nil {
				return err
			}
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("电影发现中断: %w", err)
	}

	// 收尾批次
	if len(batch) > 0 {
		if err := p.flushBatch(ctx, batch, genreMap, stats); err != nil {
			return stats, err
		}
	}

	log.Printf("[Ingest] 摄取完成: 电影 %d | 影评 %d | 向量 %d | 跳过 %d",
		stats.Movies, stats.Reviews, stats.Vectors, stats.Skipped)
	return stats, nil
}

// loadGenres 拉取类型表并写入参照表，返回 TMDB 类型 ID 映射
func (p *IngestionPipeline) loadGenres(ctx context.Context) (map[int]model.Genre, error) {
	tmdbGenres, err := p.source.GetGenres(ctx)
	if err != nil {
		return nil, err
	}

	genres := make([]model.Genre, 0, len(tmdbGenres))
	for _, g := range tmdbGenres {
		genres = append(genres, model.Genre{ID: g.ID, Name: g.Name})
	}
	if err := p.repos.Genre.UpsertTaxonomy(genres); err != nil {
		return nil, err
	}

	genreMap := make(map[int]model.Genre, len(genres))
	for _, g := range genres {
		genreMap[g.ID] = g
	}
	log.Printf("[Ingest] 类型表已就绪: %d 个类型", len(genreMap))
	return genreMap, nil
}

// flushBatch 将一批单元在单个事务内落库，提交后再向量化写入
func (p *IngestionPipeline) flushBatch(ctx context.Context, batch []rawUnit, genreMap map[int]model.Genre, stats *RunStats) error {
	var units []ProcessedUnit

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, raw := range batch {
			unit, err := p.writeUnit(tx, raw, genreMap)
			if err != nil {
				return err
			}
			stats.Movies++
			if unit != nil {
				stats.Reviews += len(unit.ReviewIDs)
				units = append(units, *unit)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("批次落库失败: %w", err)
	}

	// 关系库事务已提交，此时向量写入使用的影评 ID 必然存在
	count, err := p.embedAndLoad(ctx, units)
	if err != nil {
		return err
	}
	stats.Vectors += count

	log.Printf("[Ingest] 批次完成: %d 个单元, %d 个向量", len(batch), count)
	return nil
}

// writeUnit 在事务内写入一部电影及其合格影评
// 影评文本去除首尾空白后不足最小长度的静默丢弃
// 返回 nil 表示该单元没有可向量化的影评（电影本身仍然入库）
func (p *IngestionPipeline) writeUnit(tx *gorm.DB, raw rawUnit, genreMap map[int]model.Genre) (*ProcessedUnit, error) {
	genres := make([]model.Genre, 0, len(raw.movie.GenreIDs))
	genreIDs := make([]int, 0, len(raw.movie.GenreIDs))
	for _, gid := range raw.movie.GenreIDs {
		if g, ok := genreMap[gid]; ok {
			genres = append(genres, g)
			genreIDs = append(genreIDs, gid)
		}
	}

	tmdbID := raw.movie.TMDBID
	movie := model.Movie{
		TMDBID:      &tmdbID,
		Title:       raw.movie.Title,
		Overview:    raw.movie.Overview,
		ReleaseDate: raw.movie.ReleaseDate,
		PosterPath:  raw.movie.PosterPath,
		Genres:      genres,
	}
	if err := tx.Create(&movie).Error; err != nil {
		return nil, err
	}

	unit := ProcessedUnit{
		MovieID:    movie.ID,
		MovieTitle: movie.Title,
		GenreIDs:   genreIDs,
		Year:       movie.Year(),
		Source:     "tmdb",
	}

	for _, r := range raw.reviews {
		content := strings.TrimSpace(r.Content)
		if utf8.RuneCountInString(content) < p.cfg.MinReviewLength {
			continue
		}

		review := model.Review{
			MovieID:    movie.ID,
			Content:    r.Content,
			Source:     "tmdb",
			Rating:     r.Rating,
			AuthorName: r.AuthorName,
		}
		if r.AvatarPath != "" {
			review.AuthorAvatarURL = "https://image.tmdb.org/t/p/original" + r.AvatarPath
		}
		if err := tx.Create(&review).Error; err != nil {
			return nil, err
		}

		rating := 0.0
		if r.Rating != nil {
			rating = *r.Rating
		}
		unit.ReviewIDs = append(unit.ReviewIDs, review.ID)
		unit.Contents = append(unit.Contents, r.Content)
		unit.Ratings = append(unit.Ratings, rating)
	}

	if len(unit.ReviewIDs) == 0 {
		return nil, nil
	}
	return &unit, nil
}

// embedAndLoad 清洗并批量向量化已提交单元的影评，再写入向量库
func (p *IngestionPipeline) embedAndLoad(ctx context.Context, units []ProcessedUnit) (int, error) {
	if len(units) == 0 {
		return 0, nil
	}

	var texts []string
	for _, unit := range units {
		for _, content := range unit.Contents {
			texts = append(texts, utils.Normalize(content, p.normOpts))
		}
	}

	vectors, err := p.embedder.EmbedMany(ctx, texts, p.embedBatchSize)
	if err != nil {
		return 0, fmt.Errorf("批量向量化失败: %w", err)
	}

	points := make([]vectorstore.ReviewPoint, 0, len(texts))
	cursor := 0
	for _, unit := range units {
		genreIDs := make([]string, 0, len(unit.GenreIDs))
		for _, gid := range unit.GenreIDs {
			genreIDs = append(genreIDs, strconv.Itoa(gid))
		}

		for i, reviewID := range unit.ReviewIDs {
			points = append(points, vectorstore.ReviewPoint{
				ID:     reviewID,
				Vector: vectors[cursor],
				Payload: vectorstore.PointPayload{
					MovieID:    unit.MovieID,
					MovieTitle: unit.MovieTitle,
					Rating:     unit.Ratings[i],
					Year:       unit.Year,
					GenreIDs:   genreIDs,
					Source:     unit.Source,
				},
			})
			cursor++
		}
	}

	// 向量写入按固定块分批，和关系库提交批次解耦
	const upsertChunk = 64
	for start := 0; start < len(points); start += upsertChunk {
		end := start + upsertChunk
		if end > len(points) {
			end = len(points)
		}
		if err := p.vectors.Upsert(ctx, points[start:end]); err != nil {
			return 0, fmt.Errorf("写入向量库失败: %w", err)
		}
	}
	return len(points), nil
}

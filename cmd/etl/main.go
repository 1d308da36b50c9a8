package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/user/cinesense/internal/config"
	"github.com/user/cinesense/internal/embedding"
	"github.com/user/cinesense/internal/repository"
	"github.com/user/cinesense/internal/service"
	"github.com/user/cinesense/internal/vectorstore"
)

func main() {
	pages := flag.Int("pages", 1, "发现页数（每页 20 部电影）")
	maxReviews := flag.Int("max-reviews", 0, "每部电影最多摄取的影评数（0 使用配置默认值）")
	source := flag.String("source", "popular", "发现端点: popular / top_rated")
	reset := flag.Bool("reset", false, "清空关系库与向量集合后重建")
	mock := flag.Bool("mock", false, "跳过 TMDB，写入内置演示数据")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}
	cfg := config.Load()

	db, err := repository.InitDB(cfg.Postgres.URL())
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	index, err := vectorstore.NewIndex(cfg.Qdrant, cfg.Embedding.Dimension)
	if err != nil {
		log.Fatalf("向量库连接失败: %v", err)
	}
	defer index.Close()

	// Ctrl-C 停在当前摄取单元边界
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *reset {
		log.Println("[ETL] 重置模式：清空关系库与向量集合")
		if err := repository.Reset(db); err != nil {
			log.Fatalf("关系库重置失败: %v", err)
		}
		if err := index.RecreateCollection(ctx); err != nil {
			log.Fatalf("向量集合重建失败: %v", err)
		}
	} else {
		if err := repository.Migrate(db); err != nil {
			log.Fatalf("数据库迁移失败: %v", err)
		}
		if err := index.EnsureCollection(ctx); err != nil {
			log.Fatalf("向量集合初始化失败: %v", err)
		}
	}

	repos := repository.NewRepositories(db)
	embedder := embedding.NewEngine(cfg.Embedding)
	defer embedder.Close()

	if *mock {
		pipeline := service.NewIngestionPipeline(db, repos, nil, embedder, index, cfg.ETL, cfg.Embedding.BatchSize)
		if _, err := pipeline.SeedMock(ctx); err != nil {
			log.Fatalf("演示数据写入失败: %v", err)
		}
		return
	}

	tmdb, err := service.NewTMDBClient(cfg.TMDB)
	if err != nil {
		log.Fatalf("TMDB 客户端初始化失败: %v", err)
	}

	pipeline := service.NewIngestionPipeline(db, repos, tmdb, embedder, index, cfg.ETL, cfg.Embedding.BatchSize)
	stats, err := pipeline.Run(ctx, service.RunOptions{
		Pages:              *pages,
		MaxReviewsPerMovie: *maxReviews,
		Source:             *source,
	})
	if err != nil {
		if ctx.Err() != nil {
			log.Printf("[ETL] 收到中断信号，已处理: 电影 %d | 影评 %d", stats.Movies, stats.Reviews)
			return
		}
		log.Fatalf("摄取失败: %v", err)
	}
}

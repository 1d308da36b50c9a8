package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/user/cinesense/internal/config"
	"github.com/user/cinesense/internal/embedding"
	"github.com/user/cinesense/internal/handler"
	"github.com/user/cinesense/internal/middleware"
	"github.com/user/cinesense/internal/repository"
	"github.com/user/cinesense/internal/router"
	"github.com/user/cinesense/internal/service"
	"github.com/user/cinesense/internal/vectorstore"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg := config.Load()

	// 初始化数据库
	db, err := repository.InitDB(cfg.Postgres.URL())
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if err := repository.Migrate(db); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 初始化仓库
	repos := repository.NewRepositories(db)

	// 初始化向量库
	index, err := vectorstore.NewIndex(cfg.Qdrant, cfg.Embedding.Dimension)
	if err != nil {
		log.Fatalf("向量库连接失败: %v", err)
	}
	defer index.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := index.EnsureCollection(ctx); err != nil {
		cancel()
		log.Fatalf("向量集合初始化失败: %v", err)
	}
	cancel()

	// 初始化向量模型（惰性：首次使用时才加载）
	embedder := embedding.NewEngine(cfg.Embedding)
	defer embedder.Close()

	// 初始化服务
	searchSvc := service.NewSearchService(embedder, index, repos.Movie)

	// 初始化 Gin
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// 启用 gzip，默认压缩级别
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 中间件
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// 初始化 Handler
	h := handler.NewHandler(db, repos, searchSvc, index, embedder)

	// 注册路由
	router.RegisterRoutes(r, h)

	// 配置 HTTP 服务器，端口默认值由 config.Load 兜底
	port := cfg.Port

	srv := &http.Server{
		Addr:           ":" + port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// 在 goroutine 中启动服务器，这样我们就可以监听信号
	go func() {
		log.Printf("服务器启动于 http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务器...")

	// 5 秒超时上下文用于关闭过程
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("服务器强制关闭:", err)
	}

	log.Println("服务器已退出")
}

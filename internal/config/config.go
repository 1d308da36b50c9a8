package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置，启动时构造一次，按引用传入各组件
type Config struct {
	Env      string
	Port     string
	SiteName string

	Postgres  PostgresConfig
	Qdrant    QdrantConfig
	Embedding EmbeddingConfig
	TMDB      TMDBConfig
	ETL       ETLConfig
}

// PostgresConfig PostgreSQL 连接配置
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL 生成数据库连接串
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// QdrantConfig Qdrant 向量库配置
type QdrantConfig struct {
	Host       string
	GRPCPort   int
	APIKey     string
	Collection string
}

// EmbeddingConfig 向量模型配置
type EmbeddingConfig struct {
	// Ollama 兼容的 embedding 服务地址
	Host string
	// paraphrase-multilingual: 384 维多语言向量，支持跨语言语义匹配
	Model     string
	Dimension int
	BatchSize int
	CacheSize int
}

// TMDBConfig TMDB API 配置
type TMDBConfig struct {
	Token        string
	BaseURL      string
	Language     string
	RequestDelay time.Duration
	MaxRetries   int
}

// ETLConfig 数据摄取配置
type ETLConfig struct {
	CommitBatchSize    int
	MaxReviewsPerMovie int
	MinReviewLength    int
}

// Load 从环境变量加载配置
func Load() *Config {
	qdrantPort, _ := strconv.Atoi(getEnv("QDRANT_GRPC_PORT", "6334"))
	embedDim, _ := strconv.Atoi(getEnv("EMBEDDING_DIM", "384"))
	embedBatch, _ := strconv.Atoi(getEnv("EMBEDDING_BATCH_SIZE", "32"))
	embedCache, _ := strconv.Atoi(getEnv("EMBEDDING_CACHE_SIZE", "2048"))
	delayMs, _ := strconv.Atoi(getEnv("TMDB_REQUEST_DELAY_MS", "100"))
	retries, _ := strconv.Atoi(getEnv("TMDB_MAX_RETRIES", "3"))
	commitBatch, _ := strconv.Atoi(getEnv("ETL_COMMIT_BATCH_SIZE", "50"))
	maxReviews, _ := strconv.Atoi(getEnv("ETL_MAX_REVIEWS_PER_MOVIE", "10"))
	minReviewLen, _ := strconv.Atoi(getEnv("ETL_MIN_REVIEW_LENGTH", "20"))

	return &Config{
		Env:      getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "5005"),
		SiteName: getEnv("SITE_NAME", "CineSense"),
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "cinesense"),
			Password: getEnv("POSTGRES_PASSWORD", "cinesense_secret"),
			DBName:   getEnv("POSTGRES_DB", "cinesense_db"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Qdrant: QdrantConfig{
			Host:       getEnv("QDRANT_HOST", "localhost"),
			GRPCPort:   qdrantPort,
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "movie_reviews"),
		},
		Embedding: EmbeddingConfig{
			Host:      getEnv("EMBEDDING_HOST", "http://localhost:11434"),
			Model:     getEnv("EMBEDDING_MODEL", "paraphrase-multilingual"),
			Dimension: embedDim,
			BatchSize: embedBatch,
			CacheSize: embedCache,
		},
		TMDB: TMDBConfig{
			Token:        getEnv("TMDB_TOKEN", ""),
			BaseURL:      getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
			Language:     getEnv("TMDB_LANGUAGE", "en-US"),
			RequestDelay: time.Duration(delayMs) * time.Millisecond,
			MaxRetries:   retries,
		},
		ETL: ETLConfig{
			CommitBatchSize:    commitBatch,
			MaxReviewsPerMovie: maxReviews,
			MinReviewLength:    minReviewLen,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

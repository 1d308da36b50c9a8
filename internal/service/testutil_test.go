package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/cinesense/internal/repository"
	"github.com/user/cinesense/internal/vectorstore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 每个测试独立的内存数据库
func newTestDB(t *testing.T) (*gorm.DB, *repository.Repositories) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 共享内存库随最后一个连接关闭而销毁，测试内保持单连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, repository.Migrate(db))
	return db, repository.NewRepositories(db)
}

// fakeEmbedder 确定性向量，无外部依赖
type fakeEmbedder struct {
	mu    sync.Mutex
	dim   int
	calls int
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim}
}

func (e *fakeEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dim)
	for i := range vec {
		vec[i] = float32(len(text)+i) / 100
	}
	return vec
}

func (e *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.vector(text), nil
}

func (e *fakeEmbedder) EmbedMany(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *fakeEmbedder) Dimension() int    { return e.dim }
func (e *fakeEmbedder) ModelName() string { return "fake-embedder" }

// fakeVectorIndex 内存向量库替身，记录写入并回放预置命中
type fakeVectorIndex struct {
	mu     sync.Mutex
	points []vectorstore.ReviewPoint

	hits       []vectorstore.ScoredReview
	searchErr  error
	lastParams vectorstore.SearchParams

	// 每次 Upsert 前的校验钩子，用于断言写入顺序约束
	onUpsert func(points []vectorstore.ReviewPoint) error
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, points []vectorstore.ReviewPoint) error {
	if f.onUpsert != nil {
		if err := f.onUpsert(points); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.points = append(f.points, points...)
	f.mu.Unlock()
	return nil
}

func (f *fakeVectorIndex) Search(ctx context.Context, vector []float32, params vectorstore.SearchParams) ([]vectorstore.ScoredReview, error) {
	f.mu.Lock()
	f.lastParams = params
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeVectorIndex) pointCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

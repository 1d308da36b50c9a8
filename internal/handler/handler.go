package handler

import (
	"context"

	"github.com/user/cinesense/internal/repository"
	"github.com/user/cinesense/internal/service"
	"gorm.io/gorm"
)

// VectorStatus 健康检查用的向量库状态接口，由 vectorstore.Index 实现
type VectorStatus interface {
	PointsCount(ctx context.Context) (uint64, error)
}

// ModelInfo 健康检查用的模型信息接口，由 embedding.Engine 实现
type ModelInfo interface {
	ModelName() string
}

// Handler HTTP 处理器集合
type Handler struct {
	db      *gorm.DB
	repos   *repository.Repositories
	search  *service.SearchService
	vectors VectorStatus
	model   ModelInfo
}

// NewHandler 创建处理器集合
func NewHandler(db *gorm.DB, repos *repository.Repositories, search *service.SearchService, vectors VectorStatus, model ModelInfo) *Handler {
	return &Handler{
		db:      db,
		repos:   repos,
		search:  search,
		vectors: vectors,
		model:   model,
	}
}

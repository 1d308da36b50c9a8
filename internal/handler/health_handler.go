package handler

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/user/cinesense/internal/model"
	"github.com/user/cinesense/internal/utils"
)

// Health 健康检查，汇报两侧存储和模型状态
// GET /health
func (h *Handler) Health(c *gin.Context) {
	resp := model.HealthResponse{
		Status:         "ok",
		EmbeddingModel: h.model.ModelName(),
	}

	sqlDB, err := h.db.DB()
	if err == nil && sqlDB.PingContext(c.Request.Context()) == nil {
		resp.PostgresOK = true
		if count, err := h.repos.Movie.Count(); err == nil {
			resp.MoviesCount = count
		}
	}

	if count, err := h.vectors.PointsCount(c.Request.Context()); err == nil {
		resp.QdrantOK = true
		resp.VectorsCount = count
	} else {
		log.Printf("[Handler] 向量库状态检查失败: %v", err)
	}

	if !resp.PostgresOK || !resp.QdrantOK {
		resp.Status = "degraded"
	}

	utils.Success(c, resp)
}

package router

import (
	"github.com/gin-gonic/gin"
	"github.com/user/cinesense/internal/handler"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", h.Health)

	// ==================== 搜索与浏览 API ====================
	api := r.Group("/api")
	{
		api.POST("/search", h.Search)
		api.GET("/movies", h.ListMovies)
		api.GET("/movies/:id", h.GetMovie)
		api.GET("/genres", h.ListGenres)
	}
}

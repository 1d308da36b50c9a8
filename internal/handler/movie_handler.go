package handler

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/user/cinesense/internal/model"
	"github.com/user/cinesense/internal/utils"
)

// ListMovies 分页获取电影列表
// GET /api/movies?page=1&page_size=20
func (h *Handler) ListMovies(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	movies, total, err := h.repos.Movie.List(page, pageSize)
	if err != nil {
		log.Printf("[Handler] 获取电影列表失败: %v", err)
		utils.InternalServerError(c, "获取电影列表失败")
		return
	}

	utils.Success(c, model.MovieListResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Movies:   movies,
	})
}

// GetMovie 获取电影详情（含类型和影评）
// GET /api/movies/:id
func (h *Handler) GetMovie(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "电影ID格式错误")
		return
	}

	movie, err := h.repos.Movie.FindByID(id)
	if err != nil {
		log.Printf("[Handler] 获取电影详情失败: %v", err)
		utils.InternalServerError(c, "获取电影详情失败")
		return
	}
	if movie == nil {
		utils.NotFound(c, "电影不存在")
		return
	}

	utils.Success(c, movie)
}

// ListGenres 获取全部类型
// GET /api/genres
func (h *Handler) ListGenres(c *gin.Context) {
	genres, err := h.repos.Genre.ListAll()
	if err != nil {
		log.Printf("[Handler] 获取类型列表失败: %v", err)
		utils.InternalServerError(c, "获取类型列表失败")
		return
	}
	utils.Success(c, genres)
}

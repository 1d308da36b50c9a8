package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/user/cinesense/internal/model"
	"github.com/user/cinesense/internal/service"
	"github.com/user/cinesense/internal/utils"
	"github.com/user/cinesense/internal/vectorstore"
)

// Search 语义搜索接口
// POST /api/search
func (h *Handler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求格式错误: "+err.Error())
		return
	}

	resp, err := h.search.Search(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			utils.BadRequest(c, err.Error())
		case errors.Is(err, vectorstore.ErrCollectionMissing):
			log.Printf("[Handler] 向量集合缺失，请先运行摄取: %v", err)
			utils.Error(c, 503, "搜索索引未初始化")
		default:
			log.Printf("[Handler] 搜索失败: %v", err)
			utils.InternalServerError(c, "搜索失败")
		}
		return
	}

	utils.Success(c, resp)
}

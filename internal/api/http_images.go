package api

import (
	"net/http"
	"strings"

	"imagestudio/internal/entity"
	"imagestudio/internal/prompt"
	"imagestudio/internal/service"

	"github.com/gin-gonic/gin"
)

// ListStyles 返回风格和编辑目录，前端据此渲染选项。
func (h *HTTPHandler) ListStyles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"styles":       prompt.Styles(),
		"edit_options": prompt.EditOptions(),
	})
}

func (h *HTTPHandler) ActiveProvider(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"provider": h.studio.ProviderName()})
}

func (h *HTTPHandler) GenerateImage(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.GenerateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	image, err := h.studio.Generate(c.Request.Context(), service.GenerateInput{
		UserID:  requestUser.ID,
		Request: req,
		Meta:    requestMeta(c),
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, image)
}

func (h *HTTPHandler) EditImage(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.EditImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	image, err := h.studio.Edit(c.Request.Context(), service.EditInput{
		UserID:  requestUser.ID,
		Request: req,
		Meta:    requestMeta(c),
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, image)
}

func (h *HTTPHandler) ListImages(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var query entity.ImageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}
	query.UserID = requestUser.ID

	images, meta, err := h.studio.List(c.Request.Context(), &query)
	if err != nil {
		ServiceError(c, err)
		return
	}
	if images == nil {
		images = []entity.DbImage{}
	}
	c.JSON(http.StatusOK, entity.ImageListResponse{Images: images, Meta: meta})
}

func (h *HTTPHandler) GetImage(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		MissingField(c, "id")
		return
	}

	image, err := h.studio.Get(c.Request.Context(), requestUser.ID, id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, image)
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}

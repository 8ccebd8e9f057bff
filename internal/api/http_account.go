package api

import (
	"io"
	"net/http"

	"imagestudio/internal/entity"
	"imagestudio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *HTTPHandler) GetAccount(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	data, err := h.account.Load(c.Request.Context(), requestUser.ID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *HTTPHandler) UpdateAccount(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	summary, err := h.account.UpdateProfile(c.Request.Context(), requestUser.ID, req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// UploadAvatar 接收 multipart 字段 avatar，多读一个字节用于判断超限。
func (h *HTTPHandler) UploadAvatar(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		MissingField(c, "avatar")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		logrus.WithError(err).WithField("user_id", requestUser.ID).Warn("failed to open avatar upload")
		InvalidPayload(c)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxAvatarBytes+1))
	if err != nil {
		InvalidPayload(c)
		return
	}

	summary, err := h.account.UploadAvatar(c.Request.Context(), requestUser.ID, data)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

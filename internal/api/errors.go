package api

import (
	"errors"
	"net/http"

	"imagestudio/internal/billing"
	"imagestudio/internal/llm"
	"imagestudio/internal/prompt"
	"imagestudio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 错误码定义
const (
	// 通用错误码
	ErrCodeInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeInternalError      = "ERR_INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"

	// 认证错误码
	ErrCodeInvalidCredentials = "ERR_INVALID_CREDENTIALS"
	ErrCodeEmailExists        = "ERR_EMAIL_EXISTS"
	ErrCodeSessionExpired     = "ERR_SESSION_EXPIRED"

	// 资源错误码
	ErrCodeRecordNotFound = "ERR_RECORD_NOT_FOUND"
	ErrCodeUserNotFound   = "ERR_USER_NOT_FOUND"

	// 业务逻辑错误码
	ErrCodeMissingField     = "ERR_MISSING_FIELD"
	ErrCodeValidation       = "ERR_VALIDATION"
	ErrCodeRateLimited      = "ERR_RATE_LIMITED"
	ErrCodeGenerationFailed = "ERR_GENERATION_FAILED"
	ErrCodeStorageFailed    = "ERR_STORAGE_FAILED"
)

const (
	msgGenerationFailed = "Failed to generate image. Please try again."
	msgStorageFailed    = "Failed to save image. Please try again."
)

// APIError 统一的 API 错误响应结构
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse 返回统一格式的错误响应
func ErrorResponse(c *gin.Context, status int, code string, message string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
	})
}

// ErrorResponseWithDetails 返回带详情的错误响应
func ErrorResponseWithDetails(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// BadRequest 400 错误请求
func BadRequest(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401 未授权
func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden 403 禁止访问
func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound 404 资源不存在
func NotFound(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

// InternalError 500 服务器内部错误
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable 503 服务不可用
func ServiceUnavailable(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// MissingField 缺少必填字段
func MissingField(c *gin.Context, field string) {
	ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeMissingField, field+" is required", gin.H{"field": field})
}

// InvalidPayload 无效的请求体
func InvalidPayload(c *gin.Context) {
	ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload")
}

// ServiceError 把服务层错误映射为 HTTP 响应。上游和存储细节只写日志，不返回给客户端。
func ServiceError(c *gin.Context, err error) {
	var (
		validationErr *prompt.ValidationError
		quotaErr      *service.QuotaExceededError
		providerErr   *llm.ProviderError
		storageErr    *service.StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeValidation, validationErr.Error(), gin.H{"field": validationErr.Field})
	case errors.As(err, &quotaErr):
		ErrorResponse(c, http.StatusTooManyRequests, ErrCodeRateLimited, quotaErr.Error())
	case errors.As(err, &providerErr):
		logrus.WithError(err).WithFields(logrus.Fields{
			"path":            c.FullPath(),
			"upstream_status": providerErr.StatusCode,
		}).Warn("provider_error_response")
		ErrorResponse(c, http.StatusBadGateway, ErrCodeGenerationFailed, msgGenerationFailed)
	case errors.As(err, &storageErr):
		logrus.WithError(err).WithField("path", c.FullPath()).Error("storage_error_response")
		ErrorResponse(c, http.StatusInternalServerError, ErrCodeStorageFailed, msgStorageFailed)
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, ErrCodeRecordNotFound, "record not found")
	case errors.Is(err, billing.ErrUserNotFound):
		NotFound(c, ErrCodeUserNotFound, "user not found")
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("internal_error_response")
		InternalError(c, "internal server error")
	}
}

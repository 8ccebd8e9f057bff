package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 挂载全部接口。/stripe-webhook 不走 JWT，由签名校验保护。
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.POST("/stripe-webhook", h.StripeWebhook)

	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/me", h.AuthMiddleware(), h.Me)

	protected := apiGroup.Group("")
	protected.Use(h.AuthMiddleware())
	protected.GET("/styles", h.ListStyles)
	protected.GET("/provider", h.ActiveProvider)
	protected.GET("/events", h.StreamEvents)

	images := protected.Group("/images")
	images.POST("/generate", h.GenerateImage)
	images.POST("/edit", h.EditImage)
	images.GET("", h.ListImages)
	images.GET("/:id", h.GetImage)

	account := protected.Group("/account")
	account.GET("", h.GetAccount)
	account.PATCH("", h.UpdateAccount)
	account.POST("/avatar", h.UploadAvatar)

	billingGroup := protected.Group("/billing")
	billingGroup.POST("/checkout-session", h.CreateCheckoutSession)
	billingGroup.POST("/portal-session", h.CreatePortalSession)
}

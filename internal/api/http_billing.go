package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"imagestudio/internal/billing"
	"imagestudio/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Stripe 事件体远小于该上限
const maxWebhookBodyBytes = int64(65536)

// CreateCheckoutSession 结账接口保持 {session_id} / {error} 的响应格式。
func (h *HTTPHandler) CreateCheckoutSession(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.CheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if h.billing == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payments are not configured"})
		return
	}
	if userID := strings.TrimSpace(req.UserID); userID != "" && userID != requestUser.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id does not match the signed-in user"})
		return
	}

	session, err := h.billing.CreateCheckoutSession(c.Request.Context(), strings.TrimSpace(req.UserID), req.PriceID, h.origin(c))
	if err != nil {
		logrus.WithError(err).WithField("user_id", requestUser.ID).Warn("stripe_checkout_failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entity.CheckoutSessionResponse{SessionID: session.ID, URL: session.URL})
}

func (h *HTTPHandler) CreatePortalSession(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.PortalSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
			return
		}
	}
	if h.billing == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payments are not configured"})
		return
	}

	returnURL := strings.TrimSpace(req.ReturnURL)
	if returnURL == "" {
		returnURL = h.origin(c) + "/account"
	}

	url, err := h.billing.CreatePortalSession(c.Request.Context(), requestUser.ID, returnURL)
	if err != nil {
		logrus.WithError(err).WithField("user_id", requestUser.ID).Warn("stripe_portal_failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entity.PortalSessionResponse{URL: url})
}

// StripeWebhook 未登录即可访问，只接受签名有效的事件。
func (h *HTTPHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		logrus.WithError(err).Warn("stripe_webhook_rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": webhookMessage(err)})
		return
	}
	if h.webhooks == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhook processing is not configured"})
		return
	}

	if err := h.webhooks.Handle(c.Request.Context(), event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		}).Error("stripe_webhook_failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": webhookMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func webhookMessage(err error) string {
	var webhookErr *billing.WebhookError
	if errors.As(err, &webhookErr) && webhookErr.Message != "" {
		return webhookErr.Message
	}
	return err.Error()
}

// origin 优先使用浏览器的 Origin 头，回跳地址才能落在发起结账的站点。
func (h *HTTPHandler) origin(c *gin.Context) string {
	if origin := strings.TrimSpace(c.GetHeader("Origin")); origin != "" {
		return strings.TrimRight(origin, "/")
	}
	return strings.TrimRight(strings.TrimSpace(h.cfg.AppBaseURL), "/")
}

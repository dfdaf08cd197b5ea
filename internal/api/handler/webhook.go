package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/dieta_server/internal/pkg/response"
	"github.com/qs3c/dieta_server/internal/service"
)

// 支付回调请求体上限
const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	fulfillment *service.FulfillmentService
	logger      *zap.Logger
}

func NewWebhookHandler(fulfillment *service.FulfillmentService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		fulfillment: fulfillment,
		logger:      logger.Named("webhook"),
	}
}

// Stripe 处理支付平台回调。签名基于原始请求体计算，必须在任何 JSON 解析之前读取。
// POST /api/v1/webhook/stripe
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.ParamError(c, "request body too large or unreadable")
		return
	}

	out, err := h.fulfillment.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		status := service.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("webhook processing failed", zap.String("event_id", out.EventID), zap.Error(err))
		}
		response.Error(c, status, service.PublicMessage(err))
		return
	}

	response.Received(c, string(out.State))
}

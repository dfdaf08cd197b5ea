package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/dieta_server/internal/model/dto"
	"github.com/qs3c/dieta_server/internal/pkg/response"
	"github.com/qs3c/dieta_server/internal/service"
)

type CheckoutHandler struct {
	checkoutService *service.CheckoutService
}

func NewCheckoutHandler(checkoutService *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// Create 创建支付会话
// POST /api/v1/checkout
func (h *CheckoutHandler) Create(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "priceId and a valid email are required")
		return
	}

	resp, err := h.checkoutService.Create(c.Request.Context(), &req, c.GetHeader("Origin"))
	if err != nil {
		response.Error(c, service.HTTPStatus(err), service.PublicMessage(err))
		return
	}

	response.Success(c, resp)
}

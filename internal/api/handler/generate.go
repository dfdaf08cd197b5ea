package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/dieta_server/internal/api/middleware"
	"github.com/qs3c/dieta_server/internal/model/dto"
	"github.com/qs3c/dieta_server/internal/pkg/response"
	"github.com/qs3c/dieta_server/internal/service"
)

type GenerateHandler struct {
	fulfillment *service.FulfillmentService
	logger      *zap.Logger
}

func NewGenerateHandler(fulfillment *service.FulfillmentService, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{
		fulfillment: fulfillment,
		logger:      logger.Named("generate"),
	}
}

// Generate 为已支付档案生成并发布方案，请求体字段补充存储值中缺失的部分
// POST /api/v1/generate
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req dto.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request body")
		return
	}

	in := req.Normalize()
	caller, _ := middleware.GetCaller(c)
	h.logger.Info("generation requested", zap.String("caller", caller), zap.String("email", in.Email))

	out, err := h.fulfillment.Generate(c.Request.Context(), in)
	if err != nil {
		response.Error(c, service.HTTPStatus(err), service.PublicMessage(err))
		return
	}

	response.Success(c, dto.GenerateResponse{URL: out.Link, Text: out.Text})
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/dieta_server/internal/model/dto"
	"github.com/qs3c/dieta_server/internal/pkg/response"
	"github.com/qs3c/dieta_server/internal/service"
)

type ProfileHandler struct {
	profileService *service.ProfileService
}

func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// Register 注册档案
// POST /api/v1/profile
func (h *ProfileHandler) Register(c *gin.Context) {
	var req dto.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request body")
		return
	}

	resp, err := h.profileService.Register(c.Request.Context(), req.Normalize())
	if err != nil {
		response.Error(c, service.HTTPStatus(err), service.PublicMessage(err))
		return
	}

	response.Success(c, resp)
}

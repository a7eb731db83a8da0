package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tutorhive/tutorhive-api/internal/dto"
	"github.com/tutorhive/tutorhive-api/internal/models"
	"github.com/tutorhive/tutorhive-api/internal/service"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
	"github.com/tutorhive/tutorhive-api/pkg/response"
)

// QuotaHandler reports monthly adjustment quota usage.
type QuotaHandler struct {
	service *service.QuotaService
}

// NewQuotaHandler constructs the handler.
func NewQuotaHandler(svc *service.QuotaService) *QuotaHandler {
	return &QuotaHandler{service: svc}
}

// Usage godoc
// @Summary Current month's adjustment quota for the caller and enrollment
// @Tags Quota
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/quota [get]
func (h *QuotaHandler) Usage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	used, allowance, err := h.service.Usage(c.Request.Context(), actorFromClaims(claims), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.QuotaUsageResponse{
		Used:      used,
		Allowance: allowance,
		MonthKey:  models.MonthKeyAt(time.Now()),
		Over:      used > allowance,
	}, nil)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tutorhive/tutorhive-api/internal/dto"
	"github.com/tutorhive/tutorhive-api/internal/models"
	"github.com/tutorhive/tutorhive-api/internal/service"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
	"github.com/tutorhive/tutorhive-api/pkg/response"
)

// AvailabilityHandler exposes teacher availability endpoints.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Day godoc
// @Summary Availability view for one teacher and date
// @Description Formal two-hour slots and trial half-hour ticks with per-entry blocking reasons.
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param segment query string false "morning|afternoon|evening"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *AvailabilityHandler) Day(c *gin.Context) {
	date, err := parseDate(c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	segment := models.Segment(c.Query("segment"))

	view, err := h.service.ComputeDayAvailability(c.Request.Context(), c.Param("id"), date, segment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// WeeklyPattern godoc
// @Summary List the authenticated teacher's weekly declaration
// @Tags Availability
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /availability/pattern [get]
func (h *AvailabilityHandler) WeeklyPattern(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	pattern, err := h.service.ListWeeklyPattern(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pattern, nil)
}

// UpsertWeeklyPattern godoc
// @Summary Declare recurring slots for one weekday
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body dto.WeeklyPatternBody true "Weekday declaration"
// @Success 204
// @Security BearerAuth
// @Router /availability/pattern [put]
func (h *AvailabilityHandler) UpsertWeeklyPattern(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.WeeklyPatternBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pattern payload"))
		return
	}
	if err := h.service.UpsertWeeklyPattern(c.Request.Context(), claims.UserID, req.Weekday, req.Slots); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpsertDailyOverride godoc
// @Summary Replace declared slots for one calendar date
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body dto.DailyOverrideBody true "Date override"
// @Success 204
// @Security BearerAuth
// @Router /availability/override [put]
func (h *AvailabilityHandler) UpsertDailyOverride(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DailyOverrideBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override payload"))
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.UpsertDailyOverride(c.Request.Context(), claims.UserID, date, req.Slots); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

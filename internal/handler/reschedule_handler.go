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

// RescheduleHandler exposes the change-request lifecycle.
type RescheduleHandler struct {
	service *service.RescheduleService
}

// NewRescheduleHandler constructs the handler.
func NewRescheduleHandler(svc *service.RescheduleService) *RescheduleHandler {
	return &RescheduleHandler{service: svc}
}

// Create godoc
// @Summary Create a reschedule, pattern replacement or cancel request
// @Description Consumes one unit of the applicant's monthly quota; over-quota requests are flagged for the reviewer.
// @Tags Reschedule
// @Accept json
// @Produce json
// @Param payload body dto.CreateRescheduleBody true "Change request"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /reschedules [post]
func (h *RescheduleHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateRescheduleBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}

	input := service.CreateRescheduleInput{
		EnrollmentID:  req.EnrollmentID,
		SessionID:     req.SessionID,
		Type:          models.RescheduleType(req.Type),
		ApplicantType: actorFromClaims(claims),
		ApplicantID:   claims.UserID,
		Reason:        req.Reason,
		NewSlot:       req.NewSlot,
		NewWeekdays:   req.NewWeekdays,
		NewSlots:      req.NewSlots,
	}
	var err error
	if input.NewDate, err = parseOptionalDate(req.NewDate); err != nil {
		response.Error(c, err)
		return
	}

	request, err := h.service.CreateRescheduleRequest(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Get godoc
// @Summary Fetch one reschedule request
// @Tags Reschedule
// @Produce json
// @Param id path string true "Reschedule request ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reschedules/{id} [get]
func (h *RescheduleHandler) Get(c *gin.Context) {
	request, err := h.service.GetRescheduleRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// ListByEnrollment godoc
// @Summary List change requests for an enrollment
// @Tags Reschedule
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/reschedules [get]
func (h *RescheduleHandler) ListByEnrollment(c *gin.Context) {
	requests, err := h.service.ListByEnrollment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Cancel godoc
// @Summary Withdraw a pending change request and refund its quota
// @Description Only the applicant may withdraw their own request.
// @Tags Reschedule
// @Param id path string true "Reschedule request ID"
// @Success 204
// @Security BearerAuth
// @Router /reschedules/{id} [delete]
func (h *RescheduleHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.CancelRescheduleRequest(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Approve godoc
// @Summary Approve a pending change request
// @Tags Reschedule
// @Param id path string true "Reschedule request ID"
// @Success 204
// @Security BearerAuth
// @Router /reschedules/{id}/approve [post]
func (h *RescheduleHandler) Approve(c *gin.Context) {
	if err := h.service.ApproveRescheduleRequest(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reject godoc
// @Summary Reject a pending change request and refund its quota
// @Tags Reschedule
// @Param id path string true "Reschedule request ID"
// @Success 204
// @Security BearerAuth
// @Router /reschedules/{id}/reject [post]
func (h *RescheduleHandler) Reject(c *gin.Context) {
	if err := h.service.RejectRescheduleRequest(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

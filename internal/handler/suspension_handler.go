package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tutorhive/tutorhive-api/internal/dto"
	"github.com/tutorhive/tutorhive-api/internal/service"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
	"github.com/tutorhive/tutorhive-api/pkg/response"
)

// SuspensionHandler exposes enrollment suspension endpoints.
type SuspensionHandler struct {
	service *service.SuspensionService
}

// NewSuspensionHandler constructs the handler.
func NewSuspensionHandler(svc *service.SuspensionService) *SuspensionHandler {
	return &SuspensionHandler{service: svc}
}

// Create godoc
// @Summary Request suspension of an enrollment
// @Tags Suspension
// @Accept json
// @Produce json
// @Param payload body dto.CreateSuspensionBody true "Suspension request"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /suspensions [post]
func (h *SuspensionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateSuspensionBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid suspension payload"))
		return
	}

	request, err := h.service.CreateSuspensionRequest(c.Request.Context(), service.CreateSuspensionInput{
		EnrollmentID:  req.EnrollmentID,
		ApplicantType: actorFromClaims(claims),
		ApplicantID:   claims.UserID,
		Reason:        req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Get godoc
// @Summary Fetch one suspension request
// @Tags Suspension
// @Produce json
// @Param id path string true "Suspension request ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /suspensions/{id} [get]
func (h *SuspensionHandler) Get(c *gin.Context) {
	request, err := h.service.GetSuspensionRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// ListByEnrollment godoc
// @Summary List suspension requests for an enrollment
// @Tags Suspension
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/suspensions [get]
func (h *SuspensionHandler) ListByEnrollment(c *gin.Context) {
	requests, err := h.service.ListByEnrollment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Approve godoc
// @Summary Approve a pending suspension request
// @Description Suspends the enrollment and halts its forward sessions.
// @Tags Suspension
// @Param id path string true "Suspension request ID"
// @Success 204
// @Security BearerAuth
// @Router /suspensions/{id}/approve [post]
func (h *SuspensionHandler) Approve(c *gin.Context) {
	if err := h.service.ApproveSuspensionRequest(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reject godoc
// @Summary Reject a pending suspension request and refund its quota
// @Tags Suspension
// @Param id path string true "Suspension request ID"
// @Success 204
// @Security BearerAuth
// @Router /suspensions/{id}/reject [post]
func (h *SuspensionHandler) Reject(c *gin.Context) {
	if err := h.service.RejectSuspensionRequest(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Resume godoc
// @Summary Return a suspended enrollment to active
// @Tags Suspension
// @Param id path string true "Enrollment ID"
// @Success 204
// @Security BearerAuth
// @Router /enrollments/{id}/resume [post]
func (h *SuspensionHandler) Resume(c *gin.Context) {
	if err := h.service.ResumeEnrollment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

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

// BookingHandler exposes the booking request lifecycle.
type BookingHandler struct {
	service *service.BookingService
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{service: svc}
}

// Create godoc
// @Summary Create a trial, single or recurring booking request
// @Description The request is stored as pending; the calendar only changes at approval.
// @Tags Booking
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequestBody true "Booking request"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateBookingRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	input := service.CreateBookingInput{
		StudentID:  claims.UserID,
		TeacherID:  req.TeacherID,
		CourseID:   req.CourseID,
		Kind:       models.BookingRequestKind(req.Kind),
		Slot:       req.Slot,
		Weekdays:   req.Weekdays,
		Slots:      req.Slots,
		TotalTimes: req.TotalTimes,
	}
	var err error
	if input.Date, err = parseOptionalDate(req.Date); err != nil {
		response.Error(c, err)
		return
	}
	if input.RangeStart, err = parseOptionalDate(req.RangeStart); err != nil {
		response.Error(c, err)
		return
	}
	if input.RangeEnd, err = parseOptionalDate(req.RangeEnd); err != nil {
		response.Error(c, err)
		return
	}

	request, err := h.service.CreateBookingRequest(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List booking requests
// @Tags Booking
// @Produce json
// @Param status query string false "Filter by status"
// @Param teacherId query string false "Filter by teacher"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	var query dto.BookingListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid list query"))
		return
	}

	filter := models.BookingRequestFilter{
		Status:    models.BookingRequestStatus(query.Status),
		TeacherID: query.TeacherID,
		StudentID: query.StudentID,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	// Students only see their own requests.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	requests, total, err := h.service.ListBookingRequests(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Fetch one booking request
// @Tags Booking
// @Produce json
// @Param id path string true "Booking request ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	request, err := h.service.GetBookingRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Approve godoc
// @Summary Approve a pending booking request
// @Description Commits the booking under the distributed lock. Conflicting requests stay pending.
// @Tags Booking
// @Produce json
// @Param id path string true "Booking request ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings/{id}/approve [post]
func (h *BookingHandler) Approve(c *gin.Context) {
	enrollment, err := h.service.ApproveBookingRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Reject godoc
// @Summary Reject a pending booking request
// @Tags Booking
// @Param id path string true "Booking request ID"
// @Success 204
// @Security BearerAuth
// @Router /bookings/{id}/reject [post]
func (h *BookingHandler) Reject(c *gin.Context) {
	if err := h.service.RejectBookingRequest(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Cancel godoc
// @Summary Cancel one's own pending booking request
// @Tags Booking
// @Param id path string true "Booking request ID"
// @Success 204
// @Security BearerAuth
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.CancelBookingRequest(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CancelEnrollment godoc
// @Summary Cancel an enrollment and its forward sessions
// @Tags Booking
// @Param id path string true "Enrollment ID"
// @Success 204
// @Security BearerAuth
// @Router /enrollments/{id} [delete]
func (h *BookingHandler) CancelEnrollment(c *gin.Context) {
	if err := h.service.CancelEnrollment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

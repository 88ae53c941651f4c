package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pawhaven/petcare-api/internal/dto"
	"github.com/pawhaven/petcare-api/internal/service"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
	"github.com/pawhaven/petcare-api/pkg/response"
)

// BookingHandler manages service-slot booking endpoints.
type BookingHandler struct {
	service *service.BookingService
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{service: svc}
}

// Create godoc
// @Summary Book a service slot for one or more pets
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	result, err := h.service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Cancel godoc
// @Summary Cancel a slot booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body dto.CancelRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CancelRequest
	_ = c.ShouldBindJSON(&req)

	res, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// AvailableSlots godoc
// @Summary List open slots for a service on a date
// @Tags Bookings
// @Produce json
// @Param service_id query string true "Service ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /slots/available [get]
func (h *BookingHandler) AvailableSlots(c *gin.Context) {
	serviceID := c.Query("service_id")
	if serviceID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "service_id is required"))
		return
	}
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	slots, err := h.service.AvailableSlots(c.Request.Context(), serviceID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

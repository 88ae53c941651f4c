package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pawhaven/petcare-api/internal/dto"
	"github.com/pawhaven/petcare-api/internal/models"
	"github.com/pawhaven/petcare-api/internal/service"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
	"github.com/pawhaven/petcare-api/pkg/response"
)

// ReservationHandler exposes read access to the reservation ledger.
type ReservationHandler struct {
	service *service.ReservationService
}

// NewReservationHandler constructs the handler.
func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{service: svc}
}

// Get godoc
// @Summary Get reservation by id
// @Tags Reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Router /reservations/{id} [get]
func (h *ReservationHandler) Get(c *gin.Context) {
	res, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// List godoc
// @Summary List reservations
// @Tags Reservations
// @Produce json
// @Param resource_kind query string false "CAGE or SLOT"
// @Param resource_id query string false "Resource ID"
// @Param customer_id query string false "Customer ID (staff roles only)"
// @Param pet_id query string false "Pet ID"
// @Param status query string false "Reservation status"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reservations [get]
func (h *ReservationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var query dto.ReservationListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid list query"))
		return
	}

	filter := models.ReservationFilter{
		ResourceKind: models.ResourceKind(query.ResourceKind),
		ResourceID:   query.ResourceID,
		CustomerID:   query.CustomerID,
		PetID:        query.PetID,
		Status:       models.ReservationStatus(query.Status),
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if query.From != "" {
		from, err := time.Parse(time.RFC3339, query.From)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
			return
		}
		filter.From = from
	}
	if query.To != "" {
		to, err := time.Parse(time.RFC3339, query.To)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
			return
		}
		filter.To = to
	}

	// Customers only ever see their own reservations.
	if claims.Role == models.RoleCustomer {
		filter.CustomerID = claims.UserID
	}

	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, &pagination)
}

package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pawhaven/petcare-api/internal/dto"
	"github.com/pawhaven/petcare-api/internal/models"
	"github.com/pawhaven/petcare-api/internal/service"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
	"github.com/pawhaven/petcare-api/pkg/response"
)

// BoardingHandler manages cage-stay endpoints.
type BoardingHandler struct {
	service *service.BoardingService
}

// NewBoardingHandler constructs the handler.
func NewBoardingHandler(svc *service.BoardingService) *BoardingHandler {
	return &BoardingHandler{service: svc}
}

// Create godoc
// @Summary Board pets for a stay window
// @Tags Boardings
// @Accept json
// @Produce json
// @Param payload body service.CreateBoardingRequest true "Boarding payload"
// @Success 201 {object} response.Envelope
// @Router /boardings [post]
func (h *BoardingHandler) Create(c *gin.Context) {
	var req service.CreateBoardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid boarding payload"))
		return
	}
	reservations, err := h.service.CreateBoarding(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reservations)
}

// Cancel godoc
// @Summary Cancel a boarding reservation
// @Tags Boardings
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body dto.CancelRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /boardings/{id}/cancel [post]
func (h *BoardingHandler) Cancel(c *gin.Context) {
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

// Confirm godoc
// @Summary Confirm a held boarding reservation
// @Tags Boardings
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Router /boardings/{id}/confirm [post]
func (h *BoardingHandler) Confirm(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.Confirm(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// CheckIn godoc
// @Summary Check a pet into its cage
// @Tags Boardings
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Router /boardings/{id}/check-in [post]
func (h *BoardingHandler) CheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.CheckIn(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// CheckOut godoc
// @Summary Check a pet out of its cage
// @Tags Boardings
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Router /boardings/{id}/check-out [post]
func (h *BoardingHandler) CheckOut(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.CheckOut(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// AvailableCages godoc
// @Summary List cages free for a stay window
// @Tags Boardings
// @Produce json
// @Param from query string true "Window start (RFC3339)"
// @Param to query string true "Window end (RFC3339)"
// @Param size query string false "Cage size class"
// @Param min_weight query number false "Minimum supported weight (kg)"
// @Success 200 {object} response.Envelope
// @Router /cages/available [get]
func (h *BoardingHandler) AvailableCages(c *gin.Context) {
	window, err := parseWindow(c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.CageFilter{SizeClass: c.Query("size")}
	if raw := c.Query("min_weight"); raw != "" {
		if weight, parseErr := strconv.ParseFloat(raw, 64); parseErr == nil {
			filter.MinWeightKg = weight
		}
	}

	cages, err := h.service.AvailableCages(c.Request.Context(), window, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cages, nil)
}

func parseWindow(fromRaw, toRaw string) (models.Interval, error) {
	from, err := time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		return models.Interval{}, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, toRaw)
	if err != nil {
		return models.Interval{}, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339")
	}
	return models.Interval{Start: from, End: to}, nil
}

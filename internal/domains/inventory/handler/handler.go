package handler

import (
	"net/http"

	"library-lending/internal/domains/inventory/model"
	"library-lending/internal/domains/inventory/service"
	"library-lending/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	service service.ServiceInterface
}

func NewHandler(service service.ServiceInterface) *Handler {
	return &Handler{service: service}
}

type AvailabilityResponse struct {
	TitleID   uuid.UUID `json:"title_id"`
	Stock     int       `json:"stock"`
	Available bool      `json:"available"`
}

// GetAvailability handles GET /api/v1/titles/:id/availability
func (h *Handler) GetAvailability(c *gin.Context) {
	titleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "INV_001", "Invalid title ID format")
		return
	}

	snap, err := h.service.Available(c.Request.Context(), titleID)
	if err != nil {
		if model.IsTitleNotFoundError(err) {
			response.ErrorResponse(c, http.StatusNotFound, "INV_002", "Title not found")
			return
		}
		log.Error().Err(err).Str("title_id", titleID.String()).Msg("availability lookup failed")
		response.ErrorResponse(c, http.StatusServiceUnavailable, "INV_003", "Inventory temporarily unavailable")
		return
	}

	response.Success(c, http.StatusOK, AvailabilityResponse{
		TitleID:   snap.TitleID,
		Stock:     snap.Stock,
		Available: snap.Available(),
	})
}

package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/coldtruck/coldtruck-backend/internal/models"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

// TrackingHandler stores GPS positions sent by the driver app
type TrackingHandler struct {
	store storage.Store
	log   logger.Logger
	now   func() time.Time
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(store storage.Store, log logger.Logger) *TrackingHandler {
	return &TrackingHandler{store: store, log: log, now: time.Now}
}

// Pointer fields tell a missing value apart from zero
type trackingRequest struct {
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
	TripID *uint    `json:"IDTrip"`
}

// SaveTracking handles POST /tracking/guardar
func (h *TrackingHandler) SaveTracking(c *fiber.Ctx) error {
	var req trackingRequest
	if err := c.BodyParser(&req); err != nil || req.Lat == nil || req.Lng == nil || req.TripID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid data",
		})
	}

	point := models.NewGeoPoint(*req.Lat, *req.Lng)
	tracking := &models.Tracking{
		ID:          uuid.NewString(),
		Type:        point.Type,
		Coordinates: point.Coordinates,
		DateTime:    h.now().UTC(),
		TripID:      *req.TripID,
	}

	if err := h.store.SaveTracking(c.UserContext(), tracking); err != nil {
		h.log.Error("Failed to save tracking", "tripId", tracking.TripID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save tracking",
		})
	}

	h.log.Debug("Tracking saved", "id", tracking.ID, "tripId", tracking.TripID)
	return c.JSON(fiber.Map{
		"success": true,
		"id":      tracking.ID,
	})
}

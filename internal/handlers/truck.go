package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/coldtruck/coldtruck-backend/internal/services"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

// TruckHandler handles truck and driver-truck lookups
type TruckHandler struct {
	store storage.Store
	log   logger.Logger
}

// NewTruckHandler creates a new truck handler
func NewTruckHandler(store storage.Store, log logger.Logger) *TruckHandler {
	return &TruckHandler{
		store: store,
		log:   log,
	}
}

// GetTruck retrieves a single truck by ID
func (h *TruckHandler) GetTruck(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return message(c, fiber.StatusBadRequest, "Invalid truck id")
	}

	truck, err := h.store.GetTruck(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusNotFound, "Truck not found")
	}
	if err != nil {
		h.log.Error("Failed to get truck", "truckId", id, "error", err)
		return message(c, fiber.StatusInternalServerError, services.MsgServerError)
	}
	return c.JSON(truck)
}

// GetDriverTruck returns the truck currently assigned to a driver
func (h *TruckHandler) GetDriverTruck(c *fiber.Ctx) error {
	userID, err := parseID(c.Params("userId"))
	if err != nil {
		return message(c, fiber.StatusBadRequest, "Invalid user id")
	}
	ctx := c.UserContext()

	assignment, err := h.store.GetActiveTruckAssignment(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusNotFound, "No truck assigned to this driver")
	}
	if err != nil {
		h.log.Error("Failed to get truck assignment", "userId", userID, "error", err)
		return message(c, fiber.StatusInternalServerError, services.MsgServerError)
	}

	truck, err := h.store.GetTruck(ctx, assignment.TruckID)
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusNotFound, "Truck not found")
	}
	if err != nil {
		h.log.Error("Failed to get truck", "truckId", assignment.TruckID, "error", err)
		return message(c, fiber.StatusInternalServerError, services.MsgServerError)
	}

	return c.JSON(fiber.Map{
		"truckNumber":  truck.ID,
		"plates":       truck.Plates,
		"status":       truck.Status,
		"loadCapacity": truck.LoadCapacity,
		"brand":        truck.Brand,
		"model":        truck.Model,
	})
}

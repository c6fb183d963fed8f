package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/coldtruck/coldtruck-backend/internal/services"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

// CatalogHandler serves routes, cargo types and alert definitions
type CatalogHandler struct {
	store storage.Store
	log   logger.Logger
}

func NewCatalogHandler(store storage.Store, log logger.Logger) *CatalogHandler {
	return &CatalogHandler{store: store, log: log}
}

func (h *CatalogHandler) GetRoute(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return message(c, fiber.StatusBadRequest, "Invalid route id")
	}

	route, err := h.store.GetRoute(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusNotFound, "Rute not found")
	}
	if err != nil {
		h.log.Error("Failed to get route", "routeId", id, "error", err)
		return message(c, fiber.StatusInternalServerError, services.MsgServerError)
	}
	return c.JSON(route)
}

func (h *CatalogHandler) GetCargoType(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return message(c, fiber.StatusBadRequest, "Invalid cargo type id")
	}

	cargoType, err := h.store.GetCargoType(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusNotFound, "Cargo type not found")
	}
	if err != nil {
		h.log.Error("Failed to get cargo type", "cargoTypeId", id, "error", err)
		return message(c, fiber.StatusInternalServerError, services.MsgServerError)
	}
	return c.JSON(cargoType)
}

func (h *CatalogHandler) GetAlert(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return message(c, fiber.StatusBadRequest, "Invalid alert id")
	}

	alert, err := h.store.GetAlert(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusNotFound, "Alert not found")
	}
	if err != nil {
		h.log.Error("Failed to get alert", "alertId", id, "error", err)
		return message(c, fiber.StatusInternalServerError, services.MsgServerError)
	}
	return c.JSON(alert)
}

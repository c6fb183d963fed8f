package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/coldtruck/coldtruck-backend/internal/models"
	"github.com/coldtruck/coldtruck-backend/internal/services"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

// TripTransitions starts and finishes trips
type TripTransitions interface {
	StartTrip(ctx context.Context, tripID uint) error
	FinishTrip(ctx context.Context, tripID uint) error
}

// TripHandler handles trip requests
type TripHandler struct {
	store     storage.Store
	lifecycle TripTransitions
	log       logger.Logger
}

// NewTripHandler creates a new trip handler
func NewTripHandler(store storage.Store, lifecycle TripTransitions, log logger.Logger) *TripHandler {
	return &TripHandler{
		store:     store,
		lifecycle: lifecycle,
		log:       log,
	}
}

// tripRequest accepts tripId as a JSON number or a numeric string
type tripRequest struct {
	TripID json.Number `json:"tripId"`
}

func parseTripID(c *fiber.Ctx) (uint, error) {
	var req tripRequest
	if err := c.BodyParser(&req); err != nil {
		return 0, errInvalidID
	}
	id, err := strconv.ParseUint(req.TripID.String(), 10, 32)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

// requestContext tags coordinator log lines with the request id
func (h *TripHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		ctx = logger.IntoContext(ctx, h.log.With("requestId", rid))
	}
	return ctx
}

// StartTrip handles POST /trip/start
func (h *TripHandler) StartTrip(c *fiber.Ctx) error {
	tripID, err := parseTripID(c)
	if err != nil {
		return message(c, fiber.StatusBadRequest, "Invalid trip id")
	}

	if err := h.lifecycle.StartTrip(h.requestContext(c), tripID); err != nil {
		return lifecycleFailure(c, err)
	}
	return message(c, fiber.StatusOK, "Trip started successfully")
}

// FinishTrip handles POST /trip/finish
func (h *TripHandler) FinishTrip(c *fiber.Ctx) error {
	tripID, err := parseTripID(c)
	if err != nil {
		return message(c, fiber.StatusBadRequest, "Invalid trip id")
	}

	if err := h.lifecycle.FinishTrip(h.requestContext(c), tripID); err != nil {
		return lifecycleFailure(c, err)
	}
	return message(c, fiber.StatusOK, "Trip finished successfully")
}

// GetTrip retrieves a single trip by ID
func (h *TripHandler) GetTrip(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return message(c, fiber.StatusBadRequest, "Invalid trip id")
	}

	trip, err := h.store.GetTrip(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusNotFound, services.MsgTripNotFound)
	}
	if err != nil {
		return h.serverError(c, err)
	}
	return c.JSON(trip)
}

// GetTrips lists trips that are not canceled, newest departure first.
// An optional IDDriver query narrows the list to one driver.
func (h *TripHandler) GetTrips(c *fiber.Ctx) error {
	filter := models.TripFilter{
		ExcludeStatuses: []models.TripStatus{models.TripStatusCanceled},
	}
	if raw := c.Query("IDDriver"); raw != "" {
		if driverID, err := parseID(raw); err == nil {
			filter.DriverID = &driverID
		}
	}

	trips, err := h.store.ListTrips(c.UserContext(), filter)
	if err != nil {
		return h.serverError(c, err)
	}
	return c.JSON(nonNil(trips))
}

// GetDriverTrips lists a driver's unfinished trips, earliest departure first
func (h *TripHandler) GetDriverTrips(c *fiber.Ctx) error {
	driverID, err := parseID(c.Params("idDriver"))
	if err != nil {
		return message(c, fiber.StatusBadRequest, "Invalid driver id")
	}

	trips, err := h.store.ListTrips(c.UserContext(), models.TripFilter{
		DriverID:        &driverID,
		ExcludeStatuses: []models.TripStatus{models.TripStatusFinished},
		Ascending:       true,
	})
	if err != nil {
		return h.serverError(c, err)
	}
	if len(trips) == 0 {
		return message(c, fiber.StatusNotFound, services.MsgTripNotFound)
	}
	return c.JSON(trips)
}

// GetTruckTrips lists every trip of a truck, newest departure first
func (h *TripHandler) GetTruckTrips(c *fiber.Ctx) error {
	truckID, err := parseID(c.Params("idTruck"))
	if err != nil {
		return message(c, fiber.StatusBadRequest, "Invalid truck id")
	}

	trips, err := h.store.ListTrips(c.UserContext(), models.TripFilter{TruckID: &truckID})
	if err != nil {
		return h.serverError(c, err)
	}
	return c.JSON(nonNil(trips))
}

func (h *TripHandler) serverError(c *fiber.Ctx, err error) error {
	h.log.Error("Trip query failed", "path", c.Path(), "error", err)
	return message(c, fiber.StatusInternalServerError, services.MsgServerError)
}

func nonNil(trips []*models.Trip) []*models.Trip {
	if trips == nil {
		return []*models.Trip{}
	}
	return trips
}

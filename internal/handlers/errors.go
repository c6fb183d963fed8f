package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/coldtruck/coldtruck-backend/internal/services"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

var errInvalidID = errors.New("invalid id")

// parseID parses a positive numeric surrogate key
func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"msg": msg})
}

// statusForKind maps lifecycle error kinds to HTTP status codes
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindInvalidInput, services.KindConflict:
		return fiber.StatusBadRequest
	case services.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func lifecycleFailure(c *fiber.Ctx, err error) error {
	var lerr *services.LifecycleError
	if !errors.As(err, &lerr) {
		return message(c, fiber.StatusInternalServerError, services.MsgServerError)
	}
	return message(c, statusForKind(lerr.Kind), lerr.Msg)
}

// ErrorHandler renders errors that escape a handler as {msg}
func ErrorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := services.MsgServerError

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}
		return message(c, code, msg)
	}
}

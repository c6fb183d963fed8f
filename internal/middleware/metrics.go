package middleware

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/coldtruck/coldtruck-backend/pkg/metrics"
)

// CountErrors counts every response with a 4xx or 5xx status
func CountErrors(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		if status >= fiber.StatusBadRequest {
			// c.Method() aliases the request buffer, which fasthttp reuses
			m.HTTPErrors.WithLabelValues(utils.CopyString(c.Method()), strconv.Itoa(status)).Inc()
		}
		return err
	}
}

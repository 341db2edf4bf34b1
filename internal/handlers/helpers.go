package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sketchroom/backend/internal/services"
	"github.com/sketchroom/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// serviceError maps a domain error to its HTTP status and the uniform
// error envelope. Anything unclassified is a 500 with a generic message
// so internals never leak.
func serviceError(c *fiber.Ctx, err error) error {
	switch services.KindOf(err) {
	case services.KindValidation:
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	case services.KindAuthorization:
		return utils.Error(c, fiber.StatusForbidden, err.Error())
	case services.KindNotFound:
		return utils.Error(c, fiber.StatusNotFound, err.Error())
	case services.KindConflict:
		return utils.Error(c, fiber.StatusConflict, err.Error())
	case services.KindCapacity:
		return utils.Error(c, fiber.StatusForbidden, err.Error())
	case services.KindInvalidTarget:
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "Internal Server Error")
	}
}

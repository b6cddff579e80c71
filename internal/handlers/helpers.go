package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tdnguyen-dev/echochat/internal/service"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

func pagination(c *fiber.Ctx) (page, limit int64) {
	page = int64(c.QueryInt("page", 1))
	if page < 1 {
		page = 1
	}
	limit = int64(c.QueryInt("limit", defaultLimit))
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func objectIDParam(c *fiber.Ctx, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Params(name))
	if err != nil {
		return primitive.NilObjectID, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// serviceError maps domain sentinels to HTTP statuses; anything else is
// an opaque 500.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, service.ErrNotAMember),
		errors.Is(err, service.ErrBlocked),
		errors.Is(err, service.ErrAdminOnly):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidPayload),
		errors.Is(err, service.ErrSelfConversation),
		errors.Is(err, service.ErrNoUpdates):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

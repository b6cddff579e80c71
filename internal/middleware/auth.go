package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tdnguyen-dev/echochat/internal/auth"
)

const userIDKey = "userID"

// JWTAuth validates the bearer token and stores the caller's ObjectID in
// locals for handlers.
func JWTAuth(jv *auth.JWTValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization"})
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization"})
		}
		sub, err := jv.Validate(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		uid, err := primitive.ObjectIDFromHex(sub)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid subject"})
		}
		c.Locals(userIDKey, uid)
		return c.Next()
	}
}

// UserID reads the authenticated caller set by JWTAuth.
func UserID(c *fiber.Ctx) primitive.ObjectID {
	uid, _ := c.Locals(userIDKey).(primitive.ObjectID)
	return uid
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tdnguyen-dev/echochat/internal/middleware"
	"github.com/tdnguyen-dev/echochat/internal/models"
	"github.com/tdnguyen-dev/echochat/internal/service"
)

type ConversationHandler struct {
	convs *service.ConversationService
	log   *zap.SugaredLogger
}

func NewConversationHandler(convs *service.ConversationService, log *zap.SugaredLogger) *ConversationHandler {
	return &ConversationHandler{convs: convs, log: log}
}

func (h *ConversationHandler) List(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	page, limit := pagination(c)

	filters := service.ConversationFilters{
		Type:   models.ConversationType(c.Query("type")),
		Search: c.Query("search"),
	}
	if filters.Type != "" && filters.Type != models.ConversationPrivate && filters.Type != models.ConversationGroup {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid type"})
	}

	out, err := h.convs.List(c.Context(), userID, page, limit, filters)
	if err != nil {
		h.log.Errorw("list conversations", "userId", userID.Hex(), "error", err)
		return serviceError(c, err)
	}
	return c.JSON(out)
}

func (h *ConversationHandler) CreatePrivate(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var body struct {
		OtherUserID string `json:"otherUserId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	otherID, err := primitive.ObjectIDFromHex(body.OtherUserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid otherUserId"})
	}

	out, err := h.convs.EnsurePrivate(c.Context(), userID, otherID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(out)
}

func (h *ConversationHandler) CreateGroup(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var body struct {
		Name      string   `json:"name"`
		MemberIDs []string `json:"memberIds"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	memberIDs := make([]primitive.ObjectID, 0, len(body.MemberIDs))
	for _, raw := range body.MemberIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid member id " + raw})
		}
		memberIDs = append(memberIDs, id)
	}

	out, err := h.convs.CreateGroup(c.Context(), userID, body.Name, memberIDs)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tdnguyen-dev/echochat/internal/middleware"
	"github.com/tdnguyen-dev/echochat/internal/models"
	"github.com/tdnguyen-dev/echochat/internal/service"
)

type MessageHandler struct {
	msgs *service.MessageService
	log  *zap.SugaredLogger
}

func NewMessageHandler(msgs *service.MessageService, log *zap.SugaredLogger) *MessageHandler {
	return &MessageHandler{msgs: msgs, log: log}
}

func (h *MessageHandler) Send(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	convID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}

	var payload service.SendMessagePayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	msg, err := h.msgs.Send(c.Context(), convID, userID, payload)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *MessageHandler) List(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	convID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	page, limit := pagination(c)

	out, err := h.msgs.GetMessages(c.Context(), convID, userID, page, limit)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(out)
}

func (h *MessageHandler) ListBySender(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	convID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	senderID, err := objectIDParam(c, "senderId")
	if err != nil {
		return err
	}
	page, limit := pagination(c)

	out, err := h.msgs.GetMessagesBySender(c.Context(), convID, userID, senderID, page, limit)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(out)
}

func (h *MessageHandler) AddReaction(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	convID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	msgID, err := objectIDParam(c, "messageId")
	if err != nil {
		return err
	}

	var body struct {
		Type models.ReactionType `json:"type"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	msg, err := h.msgs.AddOrUpdateReaction(c.Context(), convID, userID, msgID, body.Type)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(msg)
}

func (h *MessageHandler) RemoveReaction(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	convID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	msgID, err := objectIDParam(c, "messageId")
	if err != nil {
		return err
	}

	msg, err := h.msgs.RemoveReaction(c.Context(), convID, userID, msgID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(msg)
}

func (h *MessageHandler) UpdateSettings(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	convID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}

	var update models.MemberSettingsUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	member, err := h.msgs.UpdateMemberSettings(c.Context(), convID, userID, update)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(member)
}

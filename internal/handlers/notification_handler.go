package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tdnguyen-dev/echochat/internal/middleware"
	"github.com/tdnguyen-dev/echochat/internal/models"
	"github.com/tdnguyen-dev/echochat/internal/service"
)

type NotificationHandler struct {
	notifs *service.NotificationService
	log    *zap.SugaredLogger
}

func NewNotificationHandler(notifs *service.NotificationService, log *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{notifs: notifs, log: log}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	page, limit := pagination(c)

	var read *bool
	if raw := c.Query("read"); raw != "" {
		v := raw == "true"
		read = &v
	}

	out, err := h.notifs.List(c.Context(), userID, page, limit, read, c.Query("type"))
	if err != nil {
		h.log.Errorw("list notifications", "userId", userID.Hex(), "error", err)
		return serviceError(c, err)
	}
	return c.JSON(out)
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	count, err := h.notifs.UnreadCount(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	n, err := h.notifs.MarkRead(c.Context(), userID, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(n)
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	modified, err := h.notifs.MarkAllRead(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"modified": modified})
}

func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.notifs.Delete(c.Context(), userID, id); err != nil {
		return serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) DeleteAllRead(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	deleted, err := h.notifs.DeleteAllRead(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

func (h *NotificationHandler) RegisterToken(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var body struct {
		Token      string              `json:"token"`
		Platform   models.PushPlatform `json:"platform"`
		DeviceID   string              `json:"deviceId"`
		DeviceName string              `json:"deviceName"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	t, err := h.notifs.RegisterToken(c.Context(), userID, body.Token, body.Platform, body.DeviceID, body.DeviceName)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *NotificationHandler) UnregisterToken(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	token := c.Params("token")
	if err := h.notifs.UnregisterToken(c.Context(), userID, token); err != nil {
		return serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

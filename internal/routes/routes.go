package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/tdnguyen-dev/echochat/internal/auth"
	"github.com/tdnguyen-dev/echochat/internal/handlers"
	"github.com/tdnguyen-dev/echochat/internal/middleware"
	"github.com/tdnguyen-dev/echochat/internal/ws"
)

type Deps struct {
	JWT           *auth.JWTValidator
	Conversations *handlers.ConversationHandler
	Messages      *handlers.MessageHandler
	Notifications *handlers.NotificationHandler
	Gateway       *ws.Gateway
}

func Register(app *fiber.App, d Deps) {
	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(d.Gateway.Handle()))

	api := app.Group("/api/v1", middleware.JWTAuth(d.JWT))

	convs := api.Group("/conversations")
	convs.Get("/", d.Conversations.List)
	convs.Post("/private", d.Conversations.CreatePrivate)
	convs.Post("/group", d.Conversations.CreateGroup)
	convs.Get("/:id/messages", d.Messages.List)
	convs.Get("/:id/messages/sender/:senderId", d.Messages.ListBySender)
	convs.Post("/:id/messages", d.Messages.Send)
	convs.Post("/:id/messages/:messageId/reactions", d.Messages.AddReaction)
	convs.Delete("/:id/messages/:messageId/reactions", d.Messages.RemoveReaction)
	convs.Patch("/:id/settings", d.Messages.UpdateSettings)

	notifs := api.Group("/notifications")
	notifs.Get("/", d.Notifications.List)
	notifs.Get("/unread-count", d.Notifications.UnreadCount)
	notifs.Patch("/:id/read", d.Notifications.MarkRead)
	notifs.Post("/read-all", d.Notifications.MarkAllRead)
	notifs.Delete("/read", d.Notifications.DeleteAllRead)
	notifs.Delete("/:id", d.Notifications.Delete)

	api.Post("/push-tokens", d.Notifications.RegisterToken)
	api.Delete("/push-tokens/:token", d.Notifications.UnregisterToken)
}

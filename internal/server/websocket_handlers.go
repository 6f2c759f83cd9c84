package server

import (
	"context"
	"log/slog"

	"feedline/internal/notifications"
	"feedline/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func websocketUpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebsocketHandler registers the connection with the feed hub. Clients only
// receive frames; anything they send is read and discarded.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID := notifications.AnonymousUserID
		if id, ok := conn.Locals("userID").(uint); ok {
			userID = id
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			observability.Logger.WarnContext(context.Background(), "websocket rejected",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

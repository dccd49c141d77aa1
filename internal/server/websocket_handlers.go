package server

import (
	"context"

	"inkwell/internal/models"
	"inkwell/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// RequireUpgrade rejects plain HTTP requests to the websocket endpoint.
func (s *Server) RequireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	return c.Next()
}

// WebsocketHandler handles GET /api/ws. The identity verified during the
// upgrade is the only one an authenticate event may claim.
// @Summary Real-time messaging connection
// @Description Authenticate with ?ticket= from POST /ws/ticket or a bearer token.
// @Tags websocket
// @Param ticket query string false "Single-use ticket"
// @Success 101
// @Failure 401 {object} models.ErrorResponse
// @Router /ws [get]
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(uint)
		ctx := context.Background()

		client := notifications.NewClient(uuid.NewString(), conn, userID, s.config.WSSendBuffer)
		session := s.sessions.Open(ctx, client.ID, userID, client)

		client.IncomingHandler = func(_ *notifications.Client, frame []byte) {
			session.HandleFrame(ctx, frame)
		}
		client.OnClose = func(*notifications.Client) {
			session.Close(ctx)
		}

		go client.WritePump()
		client.ReadPump()
	})
}

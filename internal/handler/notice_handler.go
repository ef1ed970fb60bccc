package handler

import (
	"os"

	"memory-dashboard-be/internal/pkg/logger"
	internalWS "memory-dashboard-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
)

// NoticeHandler upgrades dashboard tabs onto the notice hub so degraded-mode
// banners arrive without polling.
type NoticeHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewNoticeHandler(hub *internalWS.Hub, log logger.ILogger) *NoticeHandler {
	return &NoticeHandler{
		hub:    hub,
		logger: log,
	}
}

func (h *NoticeHandler) RegisterRoutes(r fiber.Router) {
	ws := r.Group("/chat/v1")
	ws.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	ws.Get("/ws", h.serveWs())
}

func (h *NoticeHandler) serveWs() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Browsers cannot set headers on the WS handshake, so the token comes
		// via query param first, Authorization header second.
		tokenStr := c.Query("token")
		if tokenStr == "" {
			authHeader := c.Get("Authorization")
			if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
				tokenStr = authHeader[7:]
			}
		}
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.ErrUnauthorized
			}
			return []byte(os.Getenv("JWT_SECRET")), nil
		})
		if err != nil || !token.Valid {
			h.logger.Warn("NoticeHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
		}
		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
		}

		surfaceID := c.Query("surface", "default")
		surfaceKey := userID + ":" + surfaceID

		return websocket.New(func(conn *websocket.Conn) {
			internalWS.ServeWs(h.hub, conn, surfaceKey)
		})(c)
	}
}

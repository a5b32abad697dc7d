package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/api/middleware"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/realtime"
)

// WebSocketHandler upgrades authenticated clients onto the realtime hub.
type WebSocketHandler struct {
	hub      *realtime.Hub
	auth     middleware.TokenValidator
	upgrader websocket.Upgrader
}

// NewWebSocketHandler accepts same-origin upgrades plus the listed origins.
func NewWebSocketHandler(hub *realtime.Hub, auth middleware.TokenValidator, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
	}
}

// Serve handles GET /ws?token=.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	token := middleware.ExtractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Warn("websocket upgrade failed")
		return
	}
	h.hub.Serve(conn, claims.UserID)
}

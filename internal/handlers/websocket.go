package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/requestdata"
	"github.com/dengue-gen/denguegen-backend/internal/socket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WsHandler upgrades an authenticated request and attaches the connection to
// the caller's user channel.
func WsHandler(hub *socket.Hub, log *logger.Logger) gin.HandlerFunc {
	wsLog := log.With("handler", "WsHandler")
	return func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil || rd.UserID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			wsLog.Warn("Failed to upgrade to websocket", "error", err)
			return
		}

		// The request context ends when the handler returns; the socket outlives it.
		ctx, cancel := context.WithCancel(context.Background())
		client := socket.NewClient(conn, hub, rd.UserID, cancel, wsLog)
		hub.Register(client)

		go client.WriteLoop(ctx)
		go client.ReadLoop(ctx)
	}
}

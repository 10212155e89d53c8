package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWebSocket serves /ws/monitor, upgrading the connection and
// streaming every subsequent eventbus event to the client as JSON
// until it disconnects. A blacklisted token is rejected before the
// upgrade.
func (s *Server) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token != "" && s.blacklist.IsBlacklisted(token) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "TOKEN_REVOKED", "message": "token has been revoked"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	subID := uuid.NewString()
	events := s.events.Subscribe(subID, "", nil)
	defer s.events.Unsubscribe(subID)

	s.logger.Info("websocket monitor connected", zap.String("subscriber_id", subID))

	// Drain client reads on a goroutine so a disconnect is detected
	// promptly; this handler only ever writes events, it never acts on
	// inbound frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

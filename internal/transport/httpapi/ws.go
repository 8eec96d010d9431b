package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sandevgo/termbridge/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The token query parameter is the credential; origin adds nothing.
		return true
	},
}

// handleWS upgrades the connection and binds it to a dedicated terminal
// session keyed by the sid query parameter. One text message in, one
// framed response out; the session is released when the socket closes.
func (s *Server) handleWS(c *gin.Context) {
	token := c.Query("token")
	sid := c.Query("sid")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.FromCtx(s.baseCtx).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIToken)) != 1 || sid == "" {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad token or sid")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		return
	}

	key := "ws-" + sid
	logger := log.FromCtx(s.baseCtx).With().Str("session", key).Logger()
	defer s.sessions.Release(s.baseCtx, key)

	logger.Info().Msg("websocket session opened")
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("websocket closed")
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if !s.limits.allow(key) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte("rate limit exceeded")); err != nil {
				return
			}
			continue
		}

		sup, err := s.sessions.GetOrCreate(s.baseCtx, key)
		if err != nil {
			logger.Error().Err(err).Msg("failed to start terminal session")
			if err := conn.WriteMessage(websocket.TextMessage, []byte("terminal unavailable")); err != nil {
				return
			}
			continue
		}

		output, _ := sup.Run(s.baseCtx, string(data))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(output)); err != nil {
			return
		}
	}
}

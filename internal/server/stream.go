package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/crimson-sun/fluidity/internal/model"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleSSE streams a "history" event and then one "packet" event per live packet.
func (s *Server) handleSSE(c *gin.Context) {
	sess := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sess.ID)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	history := sess.History
	if history == nil {
		history = []model.Packet{}
	}
	c.SSEvent(model.FrameHistory, history)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case p, ok := <-sess.C:
			if !ok {
				return false
			}
			c.SSEvent(model.FramePacket, p)
			return true
		}
	})
}

// handleWebSocket sends a history frame and then a frame per live packet.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sess.ID)
	log := s.log.With("session", sess.ID)
	log.Debug("websocket connected", "remote", c.Request.RemoteAddr)

	// Read pump: detect disconnects and answer pongs.
	gone := make(chan struct{})
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.ping))
	})
	conn.SetReadDeadline(time.Now().Add(2 * s.ping))
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(model.HistoryFrame(sess.History)); err != nil {
		log.Warn("websocket write failed", "error", err)
		return
	}

	ticker := time.NewTicker(s.ping)
	defer ticker.Stop()
	for {
		select {
		case <-c.Request.Context().Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-gone:
			log.Debug("websocket disconnected")
			return
		case p, ok := <-sess.C:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(model.PacketFrame(p)); err != nil {
				log.Warn("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

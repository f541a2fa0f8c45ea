package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/psds-microservice/signaling-service/internal/service"
	"go.uber.org/zap"
)

// SignalWSHandler handles WebSocket connections for /ws/signal.
type SignalWSHandler struct {
	hub    *service.SignalingHub
	logger *zap.Logger
}

// NewSignalWSHandler creates the signaling WebSocket handler.
func NewSignalWSHandler(hub *service.SignalingHub, logger *zap.Logger) *SignalWSHandler {
	return &SignalWSHandler{hub: hub, logger: logger}
}

// ServeWS upgrades the request to WebSocket and runs the signaling loop.
// The peer stays in the connecting state until it sends connection-ready;
// events arriving before that are queued by the hub.
func (h *SignalWSHandler) ServeWS(c *gin.Context) {
	conn, err := h.hub.Upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	peer, cleanup := h.hub.Register(conn)
	defer cleanup()

	// Writer goroutine: send from peer.Send to connection
	go h.writePump(peer)

	// Reader: receive frames and dispatch through the hub
	h.readPump(peer)
}

func (h *SignalWSHandler) readPump(p *service.Peer) {
	defer func() {
		_ = p.Conn.Close()
	}()
	for {
		_, data, err := p.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("read error", zap.Error(err))
			}
			break
		}
		h.hub.Dispatch(p.ID, data)
	}
}

func (h *SignalWSHandler) writePump(p *service.Peer) {
	defer func() {
		_ = p.Conn.Close()
	}()
	for data := range p.Send {
		if err := p.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
}

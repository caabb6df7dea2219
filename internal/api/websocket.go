package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/medallion-map/backend/internal/logging"
	"github.com/medallion-map/backend/internal/models"
	"github.com/rs/zerolog"
)

// WebSocket message types for the panel status stream
const (
	// Server -> Client messages
	MsgTypeStatus = "status"
	MsgTypeClosed = "closed"
	MsgTypePong   = "pong"

	// Client -> Server messages
	MsgTypePing = "ping"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WSMessage is one frame of the status stream
type WSMessage struct {
	Type      string              `json:"type"`
	Status    *models.PanelStatus `json:"status,omitempty"`
	Timestamp int64               `json:"timestamp"`
}

// StatusStreamHandlerImpl streams panel status changes to websocket clients
type StatusStreamHandlerImpl struct {
	panels   PanelManager
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewStatusStreamHandler creates a new websocket status handler
func NewStatusStreamHandler(panels PanelManager) StatusStreamHandler {
	return &StatusStreamHandlerImpl{
		panels: panels,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		log: logging.For("websocket"),
	}
}

// HandlePanelStream upgrades the connection and sends the panel status every time
// it changes, starting with the current one
func (h *StatusStreamHandlerImpl) HandlePanelStream(c echo.Context) error {
	id := c.Param("id")
	updates, unsubscribe, err := h.panels.Subscribe(id)
	if err != nil {
		return toAPIError(err, "panel", id)
	}
	defer unsubscribe()

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	h.log.Debug().Str("panel", id).Msg("status stream opened")

	// Reader: answers pings and notices the client going away.
	pings := make(chan struct{}, 1)
	gone := make(chan struct{})
	ws.SetReadLimit(1024)
	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(gone)
		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug().Err(err).Str("panel", id).Msg("status stream read error")
				}
				return
			}
			ws.SetReadDeadline(time.Now().Add(wsPongWait))
			if msg.Type == MsgTypePing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case status, ok := <-updates:
			if !ok {
				h.send(ws, WSMessage{Type: MsgTypeClosed})
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "panel closed"),
					time.Now().Add(wsWriteWait))
				return nil
			}
			if err := h.send(ws, WSMessage{Type: MsgTypeStatus, Status: &status}); err != nil {
				return nil
			}
		case <-pings:
			if err := h.send(ws, WSMessage{Type: MsgTypePong}); err != nil {
				return nil
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-gone:
			h.log.Debug().Str("panel", id).Msg("status stream closed by client")
			return nil
		}
	}
}

func (h *StatusStreamHandlerImpl) send(ws *websocket.Conn, msg WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return ws.WriteJSON(msg)
}

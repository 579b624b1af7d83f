package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/journal-monitor/backend/internal/logging"
)

// WebSocket message types for the session stream
const (
	// Client -> Server messages
	MsgTypePing   = "ping"
	MsgTypePoll   = "poll"
	MsgTypeStatus = "status"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeTimeline  = "timeline"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
	MsgTypeClosed    = "closed"
)

const wsWriteWait = 10 * time.Second

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocket error response
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler streams session timelines to websocket clients
type WebSocketHandler struct {
	sessionMgr SessionManager
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

// NewWebSocketHandler creates a new websocket stream handler
func NewWebSocketHandler(sessionMgr SessionManager) *WebSocketHandler {
	return &WebSocketHandler{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		logger: logging.Component("websocket"),
	}
}

// wsConn serialises writes; the subscription and the read loop both send.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msgType, id string, payload interface{}) error {
	msg := WSMessage{Type: msgType, ID: id, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = data
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) sendError(id, message, code string) error {
	return c.send(MsgTypeError, id, WSErrorResponse{Message: message, Code: code})
}

// HandleWebSocket upgrades the connection and streams the session's timelines
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	id := c.Param("id")
	sess, ok := wsh.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	updates, unsubscribe, err := wsh.sessionMgr.Subscribe(id)
	if err != nil {
		return FromError(err)
	}
	defer unsubscribe()

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	log := wsh.logger.With().Str("session", id).Logger()
	log.Debug().Msg("Client connected")

	conn := &wsConn{ws: ws}
	if err := conn.send(MsgTypeConnected, "", sess); err != nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wsh.readLoop(c, conn, id, log)
	}()

	for {
		select {
		case tl, ok := <-updates:
			if !ok {
				conn.send(MsgTypeClosed, "", map[string]string{"id": id})
				return nil
			}
			if err := conn.send(MsgTypeTimeline, "", tl); err != nil {
				log.Debug().Err(err).Msg("Write failed")
				return nil
			}
		case <-done:
			log.Debug().Msg("Client disconnected")
			return nil
		}
	}
}

func (wsh *WebSocketHandler) readLoop(c echo.Context, conn *wsConn, id string, log zerolog.Logger) {
	for {
		var msg WSMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Connection error")
			}
			return
		}

		wsh.sessionMgr.TouchSession(id)

		var err error
		switch msg.Type {
		case MsgTypePing:
			err = conn.send(MsgTypePong, msg.ID, nil)
		case MsgTypePoll:
			// Subscribers receive non-empty timelines; reply so the client
			// can correlate empty polls too.
			tl, pollErr := wsh.sessionMgr.Poll(c.Request().Context(), id)
			if pollErr != nil {
				err = conn.sendError(msg.ID, pollErr.Error(), FromError(pollErr).Code)
			} else if tl.Len() == 0 {
				err = conn.send(MsgTypeTimeline, msg.ID, tl)
			}
		case MsgTypeStatus:
			status, statusErr := wsh.sessionMgr.Status(id)
			if statusErr != nil {
				err = conn.sendError(msg.ID, statusErr.Error(), FromError(statusErr).Code)
			} else {
				err = conn.send(MsgTypeStatus, msg.ID, status)
			}
		default:
			err = conn.sendError(msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
		if err != nil {
			return
		}
	}
}

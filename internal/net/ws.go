package net

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	server "warbound/server"
	"warbound/server/internal/sim"
	"warbound/server/internal/telemetry"
)

const (
	readLimitBytes = 16 * 1024
	pongWait       = 60 * time.Second
)

// inboundMessage mirrors the client envelope on the wire. Type selects the
// payload: "command" carries a staged intent, "heartbeat" keeps the session
// alive, "ack" reports the client's checksum for divergence detection.
type inboundMessage struct {
	Ver      int          `json:"ver,omitempty"`
	Type     string       `json:"type"`
	Seq      uint64       `json:"seq,omitempty"`
	Command  *sim.Command `json:"command,omitempty"`
	SentAt   int64        `json:"sentAt,omitempty"`
	AckTick  uint64       `json:"ackTick,omitempty"`
	Checksum uint64       `json:"checksum,omitempty"`
}

// subscription is the write side of one attached connection.
type subscription interface {
	Write(messageType int, payload []byte) error
}

type rejectMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type wsHandler struct {
	hub      *server.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func newWSHandler(hub *server.Hub, logger telemetry.Logger) *wsHandler {
	return &wsHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The join handshake already gates access; the game protocol
			// is origin-agnostic.
			CheckOrigin: func(*nethttp.Request) bool { return true },
		},
	}
}

func (h *wsHandler) handle(c *gin.Context) {
	roomID := c.Param("room")
	sessionID := c.Param("session")

	room, ok := h.hub.Room(roomID)
	if !ok {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "unknown room"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Infow("websocket upgrade failed", "room", roomID, "session", sessionID, "error", err)
		return
	}

	sub, err := room.Subscribe(sessionID, conn)
	if err != nil {
		h.logger.Infow("subscribe rejected", "room", roomID, "session", sessionID, "error", err)
		conn.Close()
		return
	}

	go h.readPump(room, sessionID, sub, conn)
}

// readPump consumes inbound messages until the connection dies. It runs on
// its own goroutine per connection; the room's command queue is the only
// shared state it touches.
func (h *wsHandler) readPump(room *server.Room, sessionID string, sub subscription, conn *websocket.Conn) {
	defer room.Unsubscribe(sessionID)

	conn.SetReadLimit(readLimitBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Infow("websocket closed", "room", room.ID(), "session", sessionID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reject(sub, "malformed message")
			continue
		}
		h.dispatch(room, sessionID, sub, msg)
	}
}

func (h *wsHandler) dispatch(room *server.Room, sessionID string, sub subscription, msg inboundMessage) {
	switch msg.Type {
	case "command":
		if msg.Command == nil {
			h.reject(sub, "command payload missing")
			return
		}
		cmd := *msg.Command
		// The session identity comes from the connection, never from the
		// payload.
		cmd.ActorID = sessionID
		cmd.IssuedAt = time.Now()
		if ok, reason := room.Enqueue(cmd); !ok {
			h.reject(sub, reason)
		}
	case "heartbeat":
		cmd := sim.Command{
			Type:      sim.CommandHeartbeat,
			ActorID:   sessionID,
			IssuedAt:  time.Now(),
			Heartbeat: &sim.HeartbeatCommand{ClientSent: msg.SentAt},
		}
		room.Enqueue(cmd)
	case "ack":
		if !room.VerifyAck(msg.AckTick, msg.Checksum) {
			h.logger.Warnw("lockstep divergence reported",
				"room", room.ID(),
				"session", sessionID,
				"tick", msg.AckTick,
				"checksum", msg.Checksum,
			)
			h.reject(sub, "checksum mismatch")
		}
	default:
		h.reject(sub, "unknown message type")
	}
}

func (h *wsHandler) reject(sub subscription, reason string) {
	payload, err := json.Marshal(rejectMessage{Type: "error", Reason: reason})
	if err != nil {
		return
	}
	if err := sub.Write(websocket.TextMessage, payload); err != nil {
		h.logger.Debugw("reject write failed", "error", err)
	}
}

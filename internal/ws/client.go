package ws

import (
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Envelope is the wire frame for both directions: strokes from clients,
// snapshots and peer strokes to clients.
type Envelope struct {
	Type string             `json:"type"`
	Op   *models.DrawingOp  `json:"op,omitempty"`
	Ops  []models.DrawingOp `json:"ops,omitempty"`
}

type Client struct {
	hub     *Hub
	gateway *Gateway
	conn    *websocket.Conn
	roomID  uuid.UUID
	userID  uuid.UUID
	send    chan []byte
}

// readPump reads stroke frames until the connection drops. It runs on
// the connection's handler goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws_read_failed", map[string]interface{}{
					"room_id": c.roomID.String(),
					"user_id": c.userID.String(),
					"error":   err.Error(),
				})
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type != "stroke" || envelope.Op == nil {
			continue
		}

		op := *envelope.Op
		op.UserID = c.userID
		op.Ts = time.Now().UnixMilli()

		outbound, err := json.Marshal(Envelope{Type: "stroke", Op: &op})
		if err != nil {
			continue
		}

		c.hub.Broadcast(c.roomID, c, outbound)
		c.gateway.persistStroke(c.roomID, op)
		c.gateway.rooms.TouchLastSeen(c.roomID, c.userID)
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings. It runs in its own goroutine per client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package ws

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/internal/services"
	"github.com/sketchroom/backend/internal/tasks"
	"github.com/sketchroom/backend/pkg/logger"
	"github.com/sketchroom/backend/pkg/utils"
)

// Gateway upgrades authenticated room members to websocket clients and
// queues their strokes for persistence.
type Gateway struct {
	hub   *Hub
	rooms *services.RoomService
	queue *asynq.Client
}

func NewGateway(hub *Hub, rooms *services.RoomService, queue *asynq.Client) *Gateway {
	if hub == nil || rooms == nil {
		panic("Gateway requires a hub and a RoomService")
	}
	return &Gateway{hub: hub, rooms: rooms, queue: queue}
}

// UpgradeGuard authenticates the handshake before the protocol switch.
// Browsers cannot set headers on websocket dials, so the token rides in
// the query string.
func (g *Gateway) UpgradeGuard(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	claims, err := utils.ValidateToken(c.Query("token"))
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "Session expired or invalid token")
	}

	room, err := g.rooms.FindRoomByCode(c.Params("code"))
	if err != nil {
		return utils.Error(c, fiber.StatusNotFound, "Room not found")
	}

	if _, err := g.rooms.Membership(room.ID, claims.UserID); err != nil {
		return utils.Error(c, fiber.StatusForbidden, "You are not a participant of this room")
	}

	c.Locals("wsRoomID", room.ID)
	c.Locals("wsUserID", claims.UserID)
	return c.Next()
}

func (g *Gateway) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		roomID, _ := conn.Locals("wsRoomID").(uuid.UUID)
		userID, _ := conn.Locals("wsUserID").(uuid.UUID)

		client := &Client{
			hub:     g.hub,
			gateway: g,
			conn:    conn,
			roomID:  roomID,
			userID:  userID,
			send:    make(chan []byte, 64),
		}

		g.hub.Register(client)
		g.sendSnapshot(client)

		go client.writePump()
		client.readPump()
	})
}

// sendSnapshot replays the persisted board so a joining client starts
// from the current state.
func (g *Gateway) sendSnapshot(client *Client) {
	room, err := g.rooms.FindRoomByID(client.roomID)
	if err != nil {
		return
	}
	ops := room.DrawingData
	if ops == nil {
		ops = []models.DrawingOp{}
	}
	data, err := json.Marshal(Envelope{Type: "snapshot", Ops: ops})
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (g *Gateway) persistStroke(roomID uuid.UUID, op models.DrawingOp) {
	if g.queue == nil {
		// No queue wired; append synchronously so strokes still land.
		if err := g.appendDirect(roomID, op); err != nil {
			logger.Error("stroke_persist_failed", err, map[string]interface{}{
				"room_id": roomID.String(),
			})
		}
		return
	}

	task, err := tasks.NewDrawingPersistTask(tasks.DrawingPersistPayload{
		RoomID: roomID,
		Ops:    []models.DrawingOp{op},
	})
	if err != nil {
		logger.Error("stroke_task_build_failed", err, map[string]interface{}{
			"room_id": roomID.String(),
		})
		return
	}
	if _, err := g.queue.Enqueue(task); err != nil {
		logger.Error("stroke_enqueue_failed", err, map[string]interface{}{
			"room_id": roomID.String(),
		})
	}
}

func (g *Gateway) appendDirect(roomID uuid.UUID, op models.DrawingOp) error {
	room, err := g.rooms.FindRoomByID(roomID)
	if err != nil {
		return err
	}
	room.DrawingData = append(room.DrawingData, op)
	return g.rooms.DB.Model(room).Update("drawing_data", room.DrawingData).Error
}

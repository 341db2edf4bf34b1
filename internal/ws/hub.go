package ws

import (
	"github.com/google/uuid"
	"github.com/sketchroom/backend/pkg/logger"
)

type broadcast struct {
	roomID uuid.UUID
	sender *Client
	data   []byte
}

// Hub routes stroke messages between the clients of a room. All state is
// owned by the Run goroutine; clients talk to it through channels only.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcasts chan broadcast
	stop       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcasts: make(chan broadcast, 256),
		stop:       make(chan struct{}),
	}
}

// Run is the hub event loop. It must run in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			clients := h.rooms[client.roomID]
			if clients == nil {
				clients = make(map[*Client]bool)
				h.rooms[client.roomID] = clients
			}
			clients[client] = true
			logger.Info("ws_client_joined", map[string]interface{}{
				"room_id": client.roomID.String(),
				"user_id": client.userID.String(),
				"peers":   len(clients),
			})

		case client := <-h.unregister:
			if clients, ok := h.rooms[client.roomID]; ok {
				if _, present := clients[client]; present {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.roomID)
					}
				}
			}

		case msg := <-h.broadcasts:
			for client := range h.rooms[msg.roomID] {
				if client == msg.sender {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Slow consumer; drop it rather than stall the room.
					delete(h.rooms[msg.roomID], client)
					close(client.send)
				}
			}

		case <-h.stop:
			for roomID, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, roomID)
			}
			return
		}
	}
}

func (h *Hub) Shutdown() {
	close(h.stop)
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) Broadcast(roomID uuid.UUID, sender *Client, data []byte) {
	h.broadcasts <- broadcast{roomID: roomID, sender: sender, data: data}
}

package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Hub tracks live connections by room, by account and by activity
// subscription. Deliveries happen under the read lock, so a client removed by
// Leave or Unregister receives nothing afterwards.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[int]map[*Client]struct{}
	accounts map[int]map[*Client]struct{}
	admins   map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[int]map[*Client]struct{}),
		accounts: make(map[int]map[*Client]struct{}),
		admins:   make(map[*Client]struct{}),
	}
}

// Register indexes the client under its account.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := c.identity.ID
	if _, ok := h.accounts[id]; !ok {
		h.accounts[id] = make(map[*Client]struct{})
	}
	h.accounts[id][c] = struct{}{}
}

// Unregister drops the client from every index and stops its writer.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	for roomID := range c.rooms {
		h.removeFromRoom(roomID, c)
	}
	if conns, ok := h.accounts[c.identity.ID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.accounts, c.identity.ID)
		}
	}
	delete(h.admins, c)
	rooms := len(h.rooms)
	h.mu.Unlock()

	observability.SetActiveRooms(rooms)
	c.stop()
}

// Join adds the client to a room. Joining twice is a no-op.
func (h *Hub) Join(roomID int, c *Client) {
	h.mu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
	c.rooms[roomID] = struct{}{}
	rooms := len(h.rooms)
	h.mu.Unlock()

	observability.SetActiveRooms(rooms)
}

// Leave removes the client from a room and reports whether it was a member.
func (h *Hub) Leave(roomID int, c *Client) bool {
	h.mu.Lock()
	_, member := c.rooms[roomID]
	if member {
		h.removeFromRoom(roomID, c)
	}
	rooms := len(h.rooms)
	h.mu.Unlock()

	observability.SetActiveRooms(rooms)
	return member
}

func (h *Hub) removeFromRoom(roomID int, c *Client) {
	delete(c.rooms, roomID)
	if conns, ok := h.rooms[roomID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Subscribe adds the client to the activity feed audience.
func (h *Hub) Subscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.admins[c] = struct{}{}
}

// RoomSize returns the number of clients joined to a room.
func (h *Hub) RoomSize(roomID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) BroadcastMessage(chatID int, msg models.Message) {
	payload, ok := encode(OutboundEvent{Type: EventMessage, RoomID: chatID, Message: &msg})
	if !ok {
		return
	}
	h.deliver(payload, func() map[*Client]struct{} { return h.rooms[chatID] })
}

func (h *Hub) BroadcastRead(chatID int, readerID int, count int64) {
	payload, ok := encode(OutboundEvent{Type: EventRead, RoomID: chatID, ReaderID: readerID, Count: count})
	if !ok {
		return
	}
	h.deliver(payload, func() map[*Client]struct{} { return h.rooms[chatID] })
}

// NotifyBalance sends the new balance to every connection of the account.
func (h *Hub) NotifyBalance(accountID int, balance int64) {
	payload, ok := encode(OutboundEvent{Type: EventBalanceUpdate, Balance: &balance})
	if !ok {
		return
	}
	h.deliver(payload, func() map[*Client]struct{} { return h.accounts[accountID] })
}

// PublishActivity forwards a record to subscribed staff connections.
func (h *Hub) PublishActivity(a models.Activity) {
	payload, ok := encode(OutboundEvent{Type: EventActivity, Activity: &a})
	if !ok {
		return
	}
	h.deliver(payload, func() map[*Client]struct{} { return h.admins })
}

// deliver enqueues payload to the clients picked under the read lock, then
// unregisters any client whose buffer overflowed.
func (h *Hub) deliver(payload []byte, pick func() map[*Client]struct{}) {
	var slow []*Client
	h.mu.RLock()
	for c := range pick() {
		if !c.enqueue(payload) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.Unregister(c)
	}
}

func encode(event OutboundEvent) ([]byte, bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event", event.Type).Msg("websocket event encode failed")
		return nil, false
	}
	return payload, true
}

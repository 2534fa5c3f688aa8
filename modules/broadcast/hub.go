package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	domain "github.com/example/realtime-chat-demo/domain/chat"
)

// sendBufferSize bounds the per-client outbound queue. A client that cannot
// drain it loses frames rather than stalling delivery to the rest of the room.
const sendBufferSize = 256

// wsConn is the connection surface the hub needs. *websocket.Conn satisfies
// it; tests substitute a recorder.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a connected WebSocket session. A client can be in any
// number of rooms at once; room membership lives in the hub, not here.
type Client struct {
	ConnectionID string
	UserID       string
	Username     string

	conn   wsConn
	send   chan []byte
	sendMu sync.Mutex
	closed bool
}

// NewClient wraps a websocket connection for hub registration.
func NewClient(connectionID, userID, username string, conn *websocket.Conn) *Client {
	return newClient(connectionID, userID, username, conn)
}

func newClient(connectionID, userID, username string, conn wsConn) *Client {
	return &Client{
		ConnectionID: connectionID,
		UserID:       userID,
		Username:     username,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
	}
}

// writePump drains the send queue onto the connection. One goroutine per
// client; the websocket write side is not safe for concurrent use.
func (c *Client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[hub] Failed to send to client %s: %v", c.ConnectionID, err)
			return
		}
	}
}

// enqueue queues a frame for delivery, dropping it if the client's buffer is
// full. Delivery is best-effort once a frame has been accepted for relay.
// Frames for a client that has already been torn down are dropped silently;
// the read loop may still hold the client while the hub shuts down.
func (c *Client) enqueue(data []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[hub] Dropping frame for slow client %s", c.ConnectionID)
	}
}

// closeSend stops the write pump. Idempotent; the mutex ensures no enqueue
// is mid-send when the channel closes.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Send queues a typed frame for this client alone. Local acks and replies go
// through the same write pump as broadcasts so connection writes never race.
func (c *Client) Send(eventType string, payload any) {
	data, err := marshalEnvelope(eventType, payload)
	if err != nil {
		log.Printf("[hub] Failed to marshal %s frame for %s: %v", eventType, c.ConnectionID, err)
		return
	}
	c.enqueue(data)
}

// SendError queues an error frame for this client alone. Failures are never
// broadcast.
func (c *Client) SendError(message string) {
	data, err := json.Marshal(domain.Envelope{
		Type:  domain.EventError,
		Error: message,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

// frame is one unit of hub work. render produces the bytes for a given
// recipient so payloads like message deliveries can differ per recipient.
type frame struct {
	roomID  string
	exclude string
	render  func(recipient *Client) ([]byte, error)
}

// Hub fans validated chat events out to WebSocket clients. It tracks which
// connections are subscribed to which rooms, mirroring the registry's
// membership as the API layer joins and leaves.
type Hub struct {
	clients map[string]*Client         // connectionID -> Client
	rooms   map[string]map[string]bool // roomID -> set of connectionIDs

	register   chan *Client
	unregister chan string
	broadcast  chan *frame
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan string),
		broadcast:  make(chan *frame, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It accepts a context for graceful shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[hub] Shutting down...")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case connectionID := <-h.unregister:
			h.handleUnregister(connectionID)
		case f := <-h.broadcast:
			h.handleBroadcast(f)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.closeSend()
		_ = client.conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ConnectionID] = client
	go client.writePump()
	log.Printf("[hub] Client %s (%s) registered", client.ConnectionID, client.Username)
}

func (h *Hub) handleUnregister(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connectionID]
	if !ok {
		return
	}
	delete(h.clients, connectionID)
	for roomID := range h.rooms {
		h.removeFromRoomLocked(roomID, connectionID)
	}
	client.closeSend()
	log.Printf("[hub] Client %s (%s) unregistered", connectionID, client.Username)
}

func (h *Hub) handleBroadcast(f *frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[f.roomID]
	if !ok {
		return
	}
	for connectionID := range members {
		if connectionID == f.exclude {
			continue
		}
		client, ok := h.clients[connectionID]
		if !ok {
			continue
		}
		data, err := f.render(client)
		if err != nil {
			log.Printf("[hub] Failed to render frame for %s: %v", connectionID, err)
			continue
		}
		client.enqueue(data)
	}
}

// Register adds a client to the hub and starts its write pump. After
// shutdown it is a no-op so late read loops never block on it.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client and stops delivery to it. Safe to call for a
// connection the hub has never seen, has already dropped, or after the hub
// has stopped.
func (h *Hub) Unregister(connectionID string) {
	select {
	case h.unregister <- connectionID:
	case <-h.done:
	}
}

// JoinRoom subscribes a connection to a room's deliveries.
func (h *Hub) JoinRoom(connectionID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connectionID]; !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][connectionID] = true
}

// LeaveRoom unsubscribes a connection from one room.
func (h *Hub) LeaveRoom(connectionID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoomLocked(roomID, connectionID)
}

// LeaveAll unsubscribes a connection from every room it is in.
func (h *Hub) LeaveAll(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range h.rooms {
		h.removeFromRoomLocked(roomID, connectionID)
	}
}

func (h *Hub) removeFromRoomLocked(roomID, connectionID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// DeliverMessage fans a message out to the room. The delivery each recipient
// sees carries its own isOwn flag, compared against the sender's user
// identity, so a user's other connections also see their message as own.
func (h *Hub) DeliverMessage(msg domain.Message) {
	h.dispatch(&frame{
		roomID: msg.RoomID,
		render: func(recipient *Client) ([]byte, error) {
			return marshalEnvelope(domain.EventReceiveMessage, domain.ReceiveMessagePayload{
				ID:        msg.ID,
				RoomID:    msg.RoomID,
				User:      msg.Username,
				Message:   msg.Body,
				Timestamp: msg.SentAt,
				UserID:    msg.UserID,
				IsOwn:     recipient.UserID == msg.UserID,
			})
		},
	})
}

// NotifyRoom fans a presence or typing payload out to the room, excluding
// the originating connection.
func (h *Hub) NotifyRoom(roomID, excludeConnectionID, eventType string, payload any) {
	data, err := marshalEnvelope(eventType, payload)
	if err != nil {
		log.Printf("[hub] Failed to marshal %s notification: %v", eventType, err)
		return
	}
	h.dispatch(&frame{
		roomID:  roomID,
		exclude: excludeConnectionID,
		render:  func(*Client) ([]byte, error) { return data, nil },
	})
}

// dispatch hands a frame to the run loop, dropping it once the hub has
// stopped.
func (h *Hub) dispatch(f *frame) {
	select {
	case h.broadcast <- f:
	case <-h.done:
	}
}

func marshalEnvelope(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(domain.Envelope{
		Type:    eventType,
		Payload: raw,
	})
}

// GetClient returns a client by connection ID.
func (h *Hub) GetClient(connectionID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[connectionID]
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of connections subscribed to a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if members, ok := h.rooms[roomID]; ok {
		return len(members)
	}
	return 0
}

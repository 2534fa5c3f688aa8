// Package client is a Go SDK for the chat server's WebSocket interface. It
// manages the connection lifecycle, dispatches server frames to registered
// handlers, and keeps a local view of room state in sync.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	domain "github.com/example/realtime-chat-demo/domain/chat"
)

// Connection lifecycle errors.
var (
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrClosed           = errors.New("client is closed")
)

// Handler receives one server frame. Handlers run on the read loop goroutine
// and must not block.
type Handler func(env domain.Envelope)

// Client manages one authenticated WebSocket session. A closed client cannot
// be reused; dial a new one to reconnect.
type Client struct {
	serverURL string
	token     string

	mu            sync.RWMutex
	conn          *websocket.Conn
	closed        bool
	handlers      map[string]map[int]Handler
	nextHandlerID int
	identity      domain.Session

	writeMu sync.Mutex
	done    chan struct{}

	rooms *RoomState
}

// New creates a client for serverURL (e.g. "ws://localhost:3000/ws")
// authenticating with the given access token.
func New(serverURL, token string) *Client {
	c := &Client{
		serverURL: serverURL,
		token:     token,
		handlers:  make(map[string]map[int]Handler),
		done:      make(chan struct{}),
		rooms:     NewRoomState(),
	}
	return c
}

// Rooms returns the client's local room state view. It tracks message and
// typing updates automatically once the client is connected.
func (c *Client) Rooms() *RoomState {
	return c.rooms
}

// Connect dials the server and starts the read loop. It returns once the
// server has acknowledged the session.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	// The first frame is the connected ack carrying the server-bound identity.
	var env domain.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		_ = conn.Close()
		return fmt.Errorf("handshake read failed: %w", err)
	}
	if env.Type != domain.EventConnected {
		_ = conn.Close()
		return fmt.Errorf("unexpected handshake frame %q", env.Type)
	}
	var connected domain.ConnectedPayload
	if err := json.Unmarshal(env.Payload, &connected); err != nil {
		_ = conn.Close()
		return fmt.Errorf("invalid handshake payload: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.identity = domain.Session{
		ConnectionID: connected.ConnectionID,
		UserID:       connected.UserID,
		Username:     connected.Username,
	}
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// Identity returns the session identity the server bound at handshake. Zero
// until Connect succeeds.
func (c *Client) Identity() domain.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// On registers a handler for a server event type and returns a function that
// detaches it.
func (c *Client) On(eventType string, h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handlers[eventType] == nil {
		c.handlers[eventType] = make(map[int]Handler)
	}
	id := c.nextHandlerID
	c.nextHandlerID++
	c.handlers[eventType][id] = h

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[eventType], id)
	}
}

// JoinRoom asks the server to add this session to a room.
func (c *Client) JoinRoom(roomID string) error {
	return c.writeEnvelope(domain.Envelope{
		Type:   domain.EventJoinRoom,
		RoomID: roomID,
	})
}

// LeaveRoom asks the server to remove this session from a room.
func (c *Client) LeaveRoom(roomID string) error {
	return c.writeEnvelope(domain.Envelope{
		Type:   domain.EventLeaveRoom,
		RoomID: roomID,
	})
}

// SendMessage sends a message to a room. The delivered copy arrives through
// the receive_message event like everyone else's, flagged isOwn.
func (c *Client) SendMessage(roomID, message string) error {
	return c.writeEnvelope(domain.Envelope{
		Type:    domain.EventSendMessage,
		RoomID:  roomID,
		Message: message,
	})
}

// SendTyping signals typing activity to a room.
func (c *Client) SendTyping(roomID string, isTyping bool) error {
	return c.writeEnvelope(domain.Envelope{
		Type:     domain.EventTyping,
		RoomID:   roomID,
		IsTyping: isTyping,
	})
}

// RequestHistory asks for a room's cached recent messages. The reply arrives
// through the history event.
func (c *Client) RequestHistory(roomID string, limit int) error {
	return c.writeEnvelope(domain.Envelope{
		Type:   domain.EventHistory,
		RoomID: roomID,
		Limit:  limit,
	})
}

// RequestMembers asks for a room's member snapshot.
func (c *Client) RequestMembers(roomID string) error {
	return c.writeEnvelope(domain.Envelope{
		Type:   domain.EventMembers,
		RoomID: roomID,
	})
}

// RequestRoomList asks for the room catalog.
func (c *Client) RequestRoomList() error {
	return c.writeEnvelope(domain.Envelope{
		Type: domain.EventRoomList,
	})
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	close(c.done)
	c.rooms.stopTimers()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			closeDeadline())
		return conn.Close()
	}
	return nil
}

// Done is closed when the client shuts down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}

func (c *Client) writeEnvelope(env domain.Envelope) error {
	c.mu.RLock()
	conn := c.conn
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(env)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	for {
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-c.done:
				default:
					log.Printf("[client] Read error: %v", err)
				}
			}
			return
		}

		c.rooms.apply(env)
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env domain.Envelope) {
	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.handlers[env.Type]))
	for _, h := range c.handlers[env.Type] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(env)
	}
}

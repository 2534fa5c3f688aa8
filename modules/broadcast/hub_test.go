package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	domain "github.com/example/realtime-chat-demo/domain/chat"
)

type fakeConn struct {
	frames chan []byte
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames <- buf
	return nil
}

func (f *fakeConn) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		h.Wait()
	})
	return h
}

func registerClient(t *testing.T, h *Hub, connID, userID string) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	client := newClient(connID, userID, "user-"+userID, conn)
	h.Register(client)
	waitFor(t, func() bool { return h.GetClient(connID) != nil })
	return client, conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func nextEnvelope(t *testing.T, conn *fakeConn) domain.Envelope {
	t.Helper()
	select {
	case data := <-conn.frames:
		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("invalid frame: %v", err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered within deadline")
		return domain.Envelope{}
	}
}

func assertNoFrame(t *testing.T, conn *fakeConn) {
	t.Helper()
	select {
	case data := <-conn.frames:
		t.Fatalf("unexpected frame delivered: %s", data)
	default:
	}
}

func TestHub_DeliverMessagePerRecipientIsOwn(t *testing.T) {
	h := startHub(t)
	_, aliceConn := registerClient(t, h, "conn-a", "alice")
	_, bobConn := registerClient(t, h, "conn-b", "bob")
	h.JoinRoom("conn-a", "general")
	h.JoinRoom("conn-b", "general")

	h.DeliverMessage(domain.Message{
		ID:       "m1",
		RoomID:   "general",
		UserID:   "alice",
		Username: "user-alice",
		Body:     "hello",
		SentAt:   time.Now(),
	})

	var alicePayload, bobPayload domain.ReceiveMessagePayload

	env := nextEnvelope(t, aliceConn)
	if env.Type != domain.EventReceiveMessage {
		t.Fatalf("alice frame type = %q, want %q", env.Type, domain.EventReceiveMessage)
	}
	if err := json.Unmarshal(env.Payload, &alicePayload); err != nil {
		t.Fatalf("alice payload: %v", err)
	}

	env = nextEnvelope(t, bobConn)
	if err := json.Unmarshal(env.Payload, &bobPayload); err != nil {
		t.Fatalf("bob payload: %v", err)
	}

	if !alicePayload.IsOwn {
		t.Error("sender's delivery has isOwn = false")
	}
	if bobPayload.IsOwn {
		t.Error("recipient's delivery has isOwn = true")
	}
	if alicePayload.ID != bobPayload.ID || alicePayload.Message != bobPayload.Message {
		t.Error("recipients saw different message content")
	}
}

func TestHub_NotifyRoomExcludesOrigin(t *testing.T) {
	h := startHub(t)
	_, aliceConn := registerClient(t, h, "conn-a", "alice")
	_, bobConn := registerClient(t, h, "conn-b", "bob")
	h.JoinRoom("conn-a", "general")
	h.JoinRoom("conn-b", "general")

	h.NotifyRoom("general", "conn-a", domain.EventUserTyping, domain.UserTypingPayload{
		RoomID:   "general",
		Username: "user-alice",
		IsTyping: true,
	})

	env := nextEnvelope(t, bobConn)
	if env.Type != domain.EventUserTyping {
		t.Fatalf("bob frame type = %q, want %q", env.Type, domain.EventUserTyping)
	}

	// Bob receiving proves the fan-out ran; the origin got nothing.
	assertNoFrame(t, aliceConn)
}

func TestHub_RoomScopedDelivery(t *testing.T) {
	h := startHub(t)
	_, aliceConn := registerClient(t, h, "conn-a", "alice")
	_, bobConn := registerClient(t, h, "conn-b", "bob")
	h.JoinRoom("conn-a", "general")
	h.JoinRoom("conn-b", "random")

	h.DeliverMessage(domain.Message{
		ID:     "m1",
		RoomID: "general",
		UserID: "carol",
		Body:   "hello general",
	})

	env := nextEnvelope(t, aliceConn)
	if env.Type != domain.EventReceiveMessage {
		t.Fatalf("alice frame type = %q", env.Type)
	}
	assertNoFrame(t, bobConn)
}

func TestHub_LeaveRoomStopsDelivery(t *testing.T) {
	h := startHub(t)
	_, aliceConn := registerClient(t, h, "conn-a", "alice")
	_, bobConn := registerClient(t, h, "conn-b", "bob")
	h.JoinRoom("conn-a", "general")
	h.JoinRoom("conn-b", "general")

	h.LeaveRoom("conn-b", "general")

	h.DeliverMessage(domain.Message{ID: "m1", RoomID: "general", UserID: "alice"})
	nextEnvelope(t, aliceConn)
	assertNoFrame(t, bobConn)
}

func TestHub_UnregisterLeavesAllRooms(t *testing.T) {
	h := startHub(t)
	registerClient(t, h, "conn-a", "alice")
	h.JoinRoom("conn-a", "general")
	h.JoinRoom("conn-a", "random")

	if got := h.RoomClientCount("general"); got != 1 {
		t.Fatalf("RoomClientCount() = %d, want 1", got)
	}

	h.Unregister("conn-a")
	waitFor(t, func() bool { return h.ClientCount() == 0 })

	if got := h.RoomClientCount("general"); got != 0 {
		t.Errorf("RoomClientCount(general) = %d after unregister, want 0", got)
	}
	if got := h.RoomClientCount("random"); got != 0 {
		t.Errorf("RoomClientCount(random) = %d after unregister, want 0", got)
	}

	// Unregistering an unknown connection is a no-op.
	h.Unregister("ghost")
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestClient_SendAndSendError(t *testing.T) {
	h := startHub(t)
	client, conn := registerClient(t, h, "conn-a", "alice")

	client.Send(domain.EventJoined, domain.JoinedPayload{RoomID: "general"})
	env := nextEnvelope(t, conn)
	if env.Type != domain.EventJoined {
		t.Errorf("frame type = %q, want %q", env.Type, domain.EventJoined)
	}

	client.SendError("nope")
	env = nextEnvelope(t, conn)
	if env.Type != domain.EventError {
		t.Errorf("frame type = %q, want %q", env.Type, domain.EventError)
	}
	if env.Error != "nope" {
		t.Errorf("frame error = %q, want %q", env.Error, "nope")
	}
}

func TestHub_DeliveryPreservesSendOrder(t *testing.T) {
	h := startHub(t)
	_, aliceConn := registerClient(t, h, "conn-a", "alice")
	_, bobConn := registerClient(t, h, "conn-b", "bob")
	h.JoinRoom("conn-a", "general")
	h.JoinRoom("conn-b", "general")

	h.DeliverMessage(domain.Message{ID: "m1", RoomID: "general", UserID: "alice", Body: "1"})
	h.DeliverMessage(domain.Message{ID: "m2", RoomID: "general", UserID: "bob", Body: "2"})

	conns := map[string]*fakeConn{"alice": aliceConn, "bob": bobConn}
	for name, conn := range conns {
		var first, second domain.ReceiveMessagePayload
		if err := json.Unmarshal(nextEnvelope(t, conn).Payload, &first); err != nil {
			t.Fatalf("%s first payload: %v", name, err)
		}
		if err := json.Unmarshal(nextEnvelope(t, conn).Payload, &second); err != nil {
			t.Fatalf("%s second payload: %v", name, err)
		}
		if first.ID != "m1" || second.ID != "m2" {
			t.Errorf("%s observed order [%s %s], want [m1 m2]", name, first.ID, second.ID)
		}
	}
}

func TestHub_ShutdownDropsLateSends(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	client, _ := registerClient(t, h, "conn-a", "alice")
	h.JoinRoom("conn-a", "general")

	cancel()
	h.Wait()

	// The read loop can still hold the client after shutdown. Late sends
	// must be dropped, never panic on the stopped write pump.
	client.SendError("too late")
	client.Send(domain.EventJoined, domain.JoinedPayload{RoomID: "general"})
	h.DeliverMessage(domain.Message{ID: "m1", RoomID: "general", UserID: "alice"})
	h.NotifyRoom("general", "", domain.EventUserTyping, domain.UserTypingPayload{
		RoomID: "general", Username: "user-alice", IsTyping: true,
	})
}

func TestHub_RegisterUnregisterReturnAfterShutdown(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	registerClient(t, h, "conn-a", "alice")

	cancel()
	h.Wait()

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		h.Unregister("conn-a")
		h.Register(newClient("conn-b", "bob", "user-bob", newFakeConn()))
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Register/Unregister blocked after hub shutdown")
	}
}

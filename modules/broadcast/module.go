package broadcast

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/realtime-chat-demo/domain/chat"
	"github.com/example/realtime-chat-demo/events"
)

// BroadcastModule consumes validated chat events and fans them out to
// WebSocket clients through the hub.
type BroadcastModule struct {
	hub       *Hub
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.EventConsumerModule = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule() *BroadcastModule {
	return &BroadcastModule{
		hub: NewHub(),
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start initializes the module and starts the hub.
func (m *BroadcastModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	log.Println("[broadcast] Module started - WebSocket hub running")
	return nil
}

// Stop shuts down the module.
func (m *BroadcastModule) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	log.Printf("[broadcast] Module stopped - %d clients were connected", clientCount)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserJoinedV1, m.handleUserJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserLeftV1, m.handleUserLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserTypingV1, m.handleUserTyping, m,
	); err != nil {
		return fmt.Errorf("failed to register UserTyping consumer: %w", err)
	}

	log.Println("[broadcast] Registered event consumers: MessageSent, UserJoined, UserLeft, UserTyping")
	return nil
}

func (m *BroadcastModule) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	m.hub.DeliverMessage(event.Message)
	return nil
}

func (m *BroadcastModule) handleUserJoined(_ context.Context, event events.UserJoinedEvent, _ *mono.Msg) error {
	m.hub.NotifyRoom(event.RoomID, event.ConnectionID, domain.EventUserJoined, domain.UserJoinedPayload{
		RoomID:   event.RoomID,
		UserID:   event.UserID,
		Username: event.Username,
	})
	return nil
}

func (m *BroadcastModule) handleUserLeft(_ context.Context, event events.UserLeftEvent, _ *mono.Msg) error {
	m.hub.NotifyRoom(event.RoomID, event.ConnectionID, domain.EventUserLeft, domain.UserLeftPayload{
		RoomID:   event.RoomID,
		UserID:   event.UserID,
		Username: event.Username,
	})
	return nil
}

func (m *BroadcastModule) handleUserTyping(_ context.Context, event events.UserTypingEvent, _ *mono.Msg) error {
	m.hub.NotifyRoom(event.RoomID, event.ConnectionID, domain.EventUserTyping, domain.UserTypingPayload{
		RoomID:   event.RoomID,
		Username: event.Username,
		IsTyping: event.IsTyping,
	})
	return nil
}

// GetHub returns the WebSocket hub for the API module to use.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}

package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

func TestExtractClientID(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tests := []struct {
		name   string
		header map[string][]string
		want   string
	}{
		{
			name:   "client ID present",
			header: map[string][]string{"X-Client-ID": {"client-42"}},
			want:   "client-42",
		},
		{
			name:   "no header map",
			header: nil,
			want:   "anonymous",
		},
		{
			name:   "header missing",
			header: map[string][]string{"Other": {"x"}},
			want:   "anonymous",
		},
		{
			name:   "empty value",
			header: map[string][]string{"X-Client-ID": {""}},
			want:   "anonymous",
		},
		{
			name:   "overlong value truncated",
			header: map[string][]string{"X-Client-ID": {strings.Repeat("a", 200)}},
			want:   strings.Repeat("a", maxClientIDLength),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &types.Msg{Header: tt.header}
			if got := m.extractClientID(req); got != tt.want {
				t.Errorf("extractClientID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOnServiceRegistration_OnlyWrapsConfiguredServices(t *testing.T) {
	m, err := New(WithServiceLimit("login", 10, time.Minute))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	handler := func(context.Context, *types.Msg) ([]byte, error) {
		return []byte("ok"), nil
	}

	// An unconfigured service passes through with its original handler.
	unwrapped := m.OnServiceRegistration(context.Background(), types.ServiceRegistration{
		Type:           types.ServiceTypeRequestReply,
		Name:           "list-rooms",
		RequestHandler: handler,
	})
	resp, err := unwrapped.RequestHandler(context.Background(), &types.Msg{})
	if err != nil || string(resp) != "ok" {
		t.Errorf("unconfigured service handler = (%s, %v), want pass-through", resp, err)
	}

	// A non-request-reply registration is untouched.
	stream := m.OnServiceRegistration(context.Background(), types.ServiceRegistration{
		Name: "login",
	})
	if stream.RequestHandler != nil {
		t.Error("non-request-reply registration gained a handler")
	}
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{
		Message:   "rate limit exceeded for service login",
		Remaining: 0,
		Limit:     10,
	}
	if err.Error() != "rate limit exceeded for service login" {
		t.Errorf("Error() = %q", err.Error())
	}
}

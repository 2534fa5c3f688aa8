package ratelimit

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want %q", config.RedisAddr, "localhost:6379")
	}
	if config.KeyPrefix != "ratelimit:" {
		t.Errorf("KeyPrefix = %q, want %q", config.KeyPrefix, "ratelimit:")
	}
	if config.ClientIDHeader != "X-Client-ID" {
		t.Errorf("ClientIDHeader = %q, want %q", config.ClientIDHeader, "X-Client-ID")
	}
	if config.FallbackClientID != "anonymous" {
		t.Errorf("FallbackClientID = %q, want %q", config.FallbackClientID, "anonymous")
	}
	if len(config.ServiceLimits) != 0 {
		t.Errorf("ServiceLimits has %d entries, want 0", len(config.ServiceLimits))
	}
}

func TestOptions(t *testing.T) {
	config := DefaultConfig()

	opts := []Option{
		WithRedisAddr("redis.internal:6380"),
		WithRedisPassword("hunter2"),
		WithRedisDB(3),
		WithKeyPrefix("rl:"),
		WithClientIDHeader("X-Account-ID"),
		WithServiceLimit("login", 10, time.Minute),
		WithServiceLimit("register", 5, time.Minute),
	}
	for _, opt := range opts {
		opt(&config)
	}

	if config.RedisAddr != "redis.internal:6380" {
		t.Errorf("RedisAddr = %q", config.RedisAddr)
	}
	if config.RedisPassword != "hunter2" {
		t.Errorf("RedisPassword = %q", config.RedisPassword)
	}
	if config.RedisDB != 3 {
		t.Errorf("RedisDB = %d", config.RedisDB)
	}
	if config.KeyPrefix != "rl:" {
		t.Errorf("KeyPrefix = %q", config.KeyPrefix)
	}
	if config.ClientIDHeader != "X-Account-ID" {
		t.Errorf("ClientIDHeader = %q", config.ClientIDHeader)
	}

	limit, ok := config.ServiceLimits["login"]
	if !ok {
		t.Fatal("ServiceLimits missing login entry")
	}
	if limit.Limit != 10 || limit.Window != time.Minute {
		t.Errorf("login limit = %+v, want {10 1m}", limit)
	}
	if len(config.ServiceLimits) != 2 {
		t.Errorf("ServiceLimits has %d entries, want 2", len(config.ServiceLimits))
	}
}

func TestWithServiceLimit_Overwrites(t *testing.T) {
	config := DefaultConfig()
	WithServiceLimit("login", 10, time.Minute)(&config)
	WithServiceLimit("login", 20, time.Hour)(&config)

	limit := config.ServiceLimits["login"]
	if limit.Limit != 20 || limit.Window != time.Hour {
		t.Errorf("login limit = %+v, want {20 1h}", limit)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/realtime-chat-demo/middleware/ratelimit"
	"github.com/example/realtime-chat-demo/modules/api"
	"github.com/example/realtime-chat-demo/modules/auth"
	"github.com/example/realtime-chat-demo/modules/broadcast"
	"github.com/example/realtime-chat-demo/modules/chat"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Realtime Chat Demo - Fiber + EventBus Pubsub ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	// Throttle the credential endpoints against brute force.
	rateLimitMiddleware, err := ratelimit.New(
		ratelimit.WithRedisAddr(redisAddr),
		ratelimit.WithRedisPassword(os.Getenv("REDIS_PASSWORD")),
		ratelimit.WithServiceLimit(auth.ServiceLogin, 10, time.Minute),
		ratelimit.WithServiceLimit(auth.ServiceRegister, 5, time.Minute),
	)
	if err != nil {
		log.Fatalf("Failed to create rate limit middleware: %v", err)
	}

	authModule := auth.NewModule()
	chatModule := chat.NewModule()
	broadcastModule := broadcast.NewModule()
	apiModule := api.NewModule()

	// Inject broadcast hub into API module
	// (This is done manually because the hub is not exposed via ServiceContainer)
	apiModule.SetHub(broadcastModule.GetHub())

	// Register modules with the framework.
	// Order: middleware first, then independent modules, then dependents.
	app.Register(rateLimitMiddleware) // Wraps auth credential services
	app.Register(authModule)          // Accounts + JWT (ServiceProviderModule)
	app.Register(chatModule)          // Relay + registry (ServiceProviderModule + EventEmitterModule)
	app.Register(broadcastModule)     // WebSocket hub + event consumer
	app.Register(apiModule)           // HTTP/WebSocket API (depends on auth, chat)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Event Bus: NATS JetStream (internal pubsub)")
	log.Printf("  - NATS URL: %s", natsURL)
	log.Println("  - Accounts: GORM + SQLite, JWT sessions")
	log.Println("  - Rate limiting: Redis fixed window on credential endpoints")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                    - Health check")
	log.Println("  POST   /api/v1/auth/register      - Create an account")
	log.Println("  POST   /api/v1/auth/login         - Log in, get tokens")
	log.Println("  POST   /api/v1/auth/refresh       - Refresh tokens")
	log.Println("  GET    /api/v1/rooms              - List all rooms")
	log.Println("  POST   /api/v1/rooms              - Create a new room")
	log.Println("  GET    /api/v1/rooms/:id          - Get one room")
	log.Println("  GET    /api/v1/rooms/:id/history  - Get message history")
	log.Println("  GET    /api/v1/rooms/:id/members  - Get room members")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws?token=<access token>):", port)
	log.Println("  Client events: join_room, leave_room, send_message, typing, history, members, room_list")
	log.Println("  Server events: connected, joined, left, receive_message, user_joined, user_left, user_typing, error")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

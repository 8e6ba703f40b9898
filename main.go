package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-relay/internal/aggregator"
	"chat-relay/internal/db"
	"chat-relay/internal/handlers"
	"chat-relay/internal/middleware"
	"chat-relay/internal/observability"
	"chat-relay/internal/rabbitmq"
	"chat-relay/internal/relay"
	"chat-relay/internal/repositories"
	"chat-relay/internal/telemetry"
	"chat-relay/internal/ws"
)

func main() {
	ctx := context.Background()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := telemetry.InitTracing(ctx, "chat-relay", getEnv("OTLP_ENDPOINT", ""))
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	publisher := rabbitmq.NewPublisher(getEnv("AMQP_URL", ""), getEnv("AMQP_EXCHANGE", "relay.events"))
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.chat_relay", "chat-relay", getEnv("ENVIRONMENT", "dev"))

	messageRepo := repositories.NewMessageRepo(database)
	registry := ws.NewRegistry()
	engine := relay.NewEngine(registry, messageRepo)
	agg := aggregator.New(messageRepo)

	conversationHandler := handlers.NewConversationHandler(agg)
	relayWS := ws.NewRelayWebSocketHandler(registry, engine)

	router := gin.Default()
	router.Use(otelgin.Middleware("chat-relay"))
	router.Use(observability.HTTPMetricsMiddleware())

	identity := middleware.Identity()

	router.GET("/conversations", identity, conversationHandler.ListConversations)
	router.GET("/conversations/:peer_id/messages", identity, conversationHandler.GetHistory)
	router.GET("/unread", identity, conversationHandler.GetUnread)

	router.GET("/ws/:user_id", relayWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

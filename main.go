package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"contact-service/internal/config"
	"contact-service/internal/db"
	"contact-service/internal/handlers"
	"contact-service/internal/middleware"
	"contact-service/internal/observability"
	"contact-service/internal/plan"
	"contact-service/internal/rabbitmq"
	"contact-service/internal/repositories"
	"contact-service/internal/storage"
	"contact-service/internal/telemetry"
	"contact-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	mongoClient, attachmentStore, err := storage.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	shutdownTracing, err := observability.InitTracing(ctx, "contact-service", cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))

	if amqpPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err == nil {
		observability.SetPublisher(amqpPublisher)
		defer amqpPublisher.Close()
	} else {
		log.Printf("ws event publishing disabled: %v", err)
	}

	auditEmitter := telemetry.NewAuditEmitter(publisher, telemetry.DefaultRoutingKey, "contact-service", cfg.Environment)

	userRepo := repositories.NewUserRepo(database)
	contactRepo := repositories.NewContactRepo(database)
	convRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	notifRepo := repositories.NewNotificationRepo(database)

	plans := plan.NewResolver(userRepo)
	hub := ws.NewHub()
	jwtSecret := []byte(cfg.JWTSecret)

	contactHandler := handlers.NewContactHandler(contactRepo, userRepo, notifRepo, plans, hub)
	messageHandler := handlers.NewMessageHandler(convRepo, messageRepo, contactRepo, userRepo, notifRepo, plans, attachmentStore, hub)
	profileHandler := handlers.NewProfileHandler(userRepo, plans)
	notifHandler := handlers.NewNotificationHandler(notifRepo)

	conversationWS := ws.NewConversationWebSocketHandler(hub, convRepo, jwtSecret)
	presenceWS := ws.NewPresenceWebSocketHandler(hub, userRepo, contactRepo, jwtSecret)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("contact-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(jwtSecret)
	internalMiddleware := middleware.InternalMiddleware(cfg.InternalToken)

	router.PUT("/me", authMiddleware, profileHandler.UpsertMe)
	router.GET("/me", authMiddleware, profileHandler.GetMe)
	router.GET("/users/search", authMiddleware, profileHandler.SearchUsers)
	router.PUT("/internal/users/:id/plan", internalMiddleware, profileHandler.SetPlan)

	router.POST("/contacts/requests", authMiddleware, contactHandler.SendRequest)
	router.POST("/contacts/:peer_id/accept", authMiddleware, contactHandler.Accept)
	router.POST("/contacts/:peer_id/reject", authMiddleware, contactHandler.Reject)
	router.POST("/contacts/:peer_id/block", authMiddleware, contactHandler.Block)
	router.POST("/contacts/:peer_id/unblock", authMiddleware, contactHandler.Unblock)
	router.PUT("/contacts/:peer_id/favorite", authMiddleware, contactHandler.Favorite)
	router.GET("/contacts/:peer_id/presence", authMiddleware, contactHandler.PeerPresence)
	router.GET("/contacts", authMiddleware, contactHandler.ListContacts)
	router.GET("/contacts/unread-total", authMiddleware, contactHandler.UnreadTotal)

	router.GET("/conversations/:conversation_id/messages", authMiddleware, messageHandler.ListMessages)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, messageHandler.SendText)
	router.POST("/conversations/:conversation_id/attachments", authMiddleware, messageHandler.SendAttachment)
	router.POST("/conversations/:conversation_id/read", authMiddleware, messageHandler.MarkRead)
	router.DELETE("/conversations/:conversation_id/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)
	router.GET("/attachments/:id", authMiddleware, messageHandler.DownloadAttachment)

	router.GET("/notifications", authMiddleware, notifHandler.List)
	router.POST("/notifications/:id/read", authMiddleware, notifHandler.MarkRead)

	router.GET("/ws/conversations/:conversation_id", conversationWS.Handle)
	router.GET("/ws/presence", presenceWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

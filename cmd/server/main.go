package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"

	"chatbot-backend/internal/api"
	"chatbot-backend/internal/automation"
	"chatbot-backend/internal/bot"
	"chatbot-backend/internal/channels"
	"chatbot-backend/internal/config"
	"chatbot-backend/internal/database"
	"chatbot-backend/internal/messaging"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/store"
	"chatbot-backend/internal/webhook"
	"chatbot-backend/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	// Stores
	conversations := store.NewConversationStore(db)
	messages := store.NewMessageStore(db)
	workflows := store.NewWorkflowStore(db)
	executions := store.NewExecutionStore(db)
	scheduled := store.NewScheduledActionStore(db)
	channelConfigs := store.NewChannelConfigStore(db)
	outboundLogs := store.NewOutboundLogStore(db)
	users := store.NewUserStore(db)
	tenants := store.NewTenantStore(db)

	// Websocket hub backing the web widget channel
	hub := ws.NewHub(logger)

	// Channel registry
	registry := channels.NewRegistry(logger,
		channels.WithWidgetDelivery(hub),
		channels.WithOutboundLogger(func(rec channels.OutboundRecord) {
			entry := &models.OutboundMessageLog{
				TenantID:    rec.TenantID,
				ChannelType: rec.ChannelType,
				RecipientID: rec.RecipientID,
				Content:     rec.Content,
				Success:     rec.Success,
				RawResponse: rec.RawResponse,
			}
			if err := outboundLogs.Create(context.Background(), entry); err != nil {
				logger.Warn("outbound audit write failed", "error", err)
			}
		}),
	)
	rehydrateChannels(registry, channelConfigs, logger)

	// Automation engine
	executor := automation.NewExecutor(registry, conversations, messages, scheduled, cfg, logger)
	engine := automation.NewEngine(workflows, executions, executor, logger)

	// Messaging pipeline
	responder := bot.NewKeywordResponder()
	orchestrator := messaging.NewOrchestrator(registry, conversations, messages, responder, engine, logger)

	// Widget messages enter the same pipeline as platform webhooks
	hub.SetInboundHandler(func(tenantID string, raw []byte) {
		if _, err := orchestrator.ProcessInbound(context.Background(), tenantID, channels.TypeWeb, raw); err != nil {
			logger.Warn("widget message processing failed", "tenant_id", tenantID, "error", err)
		}
	})
	go hub.Run()

	// Delayed response dispatcher
	scheduler := automation.NewScheduler(scheduled, conversations, messages, registry, logger)
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go scheduler.Run(schedulerCtx)

	// Handlers
	webhookHandler := webhook.NewHandler(orchestrator, channelConfigs, logger)
	authHandler := api.NewAuthHandler(users, tenants, cfg.JWTSecret, logger)
	channelHandler := api.NewChannelHandler(registry, channelConfigs, logger)
	conversationHandler := api.NewConversationHandler(orchestrator, conversations, messages, logger)
	automationHandler := api.NewAutomationHandler(workflows, executions, engine, logger)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Platform webhook routes (unauthenticated, verified per channel)
	r.GET("/webhooks/:tenantID/:channelType", webhookHandler.Verify)
	r.POST("/webhooks/:tenantID/:channelType", webhookHandler.Receive)

	// Widget websocket attach
	r.GET("/ws/widget/:tenantID", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request, c.Param("tenantID"))
	})

	// Auth routes
	r.POST("/api/auth/register", authHandler.Register)
	r.POST("/api/auth/login", authHandler.Login)

	// Tenant-scoped API routes
	apiGroup := r.Group("/api", api.JWTAuth(cfg.JWTSecret))
	{
		apiGroup.GET("/channels/supported", channelHandler.Supported)
		apiGroup.GET("/channels", channelHandler.List)
		apiGroup.POST("/channels/register", channelHandler.Register)
		apiGroup.POST("/channels/test", channelHandler.Test)
		apiGroup.POST("/channels/send", channelHandler.Send)
		apiGroup.DELETE("/channels/:channelType", channelHandler.Delete)

		apiGroup.GET("/conversations", conversationHandler.List)
		apiGroup.GET("/conversations/:id", conversationHandler.Get)
		apiGroup.GET("/conversations/:id/messages", conversationHandler.Messages)
		apiGroup.POST("/conversations/:id/reply", conversationHandler.Reply)
		apiGroup.POST("/conversations/:id/resolve", conversationHandler.Resolve)
		apiGroup.POST("/conversations/:id/escalate", conversationHandler.Escalate)
		apiGroup.POST("/conversations/:id/assign", conversationHandler.Assign)

		apiGroup.GET("/automations", automationHandler.List)
		apiGroup.POST("/automations", automationHandler.Create)
		apiGroup.GET("/automations/templates", automationHandler.Templates)
		apiGroup.GET("/automations/executions", automationHandler.Executions)
		apiGroup.POST("/automations/trigger", automationHandler.Trigger)
		apiGroup.GET("/automations/:id", automationHandler.Get)
		apiGroup.PUT("/automations/:id", automationHandler.Update)
		apiGroup.DELETE("/automations/:id", automationHandler.Delete)
		apiGroup.POST("/automations/:id/toggle", automationHandler.Toggle)
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

// rehydrateChannels reinstalls persisted channel configs into the registry so
// integrations survive restarts.
func rehydrateChannels(registry *channels.Registry, configs store.ChannelConfigStore, logger *slog.Logger) {
	cfgs, err := configs.ListAllActive(context.Background())
	if err != nil {
		logger.Error("loading channel configs failed", "error", err)
		return
	}
	for _, cc := range cfgs {
		var credentials map[string]string
		if err := json.Unmarshal([]byte(cc.Config), &credentials); err != nil {
			logger.Warn("skipping unreadable channel config", "tenant_id", cc.TenantID, "channel", cc.ChannelType)
			continue
		}
		if _, err := registry.Register(cc.TenantID, cc.ChannelType, credentials); err != nil {
			logger.Warn("channel rehydration failed", "tenant_id", cc.TenantID, "channel", cc.ChannelType, "error", err)
		}
	}
}

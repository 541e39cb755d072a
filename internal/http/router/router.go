package router

import (
	"github.com/gin-gonic/gin"

	"eduops.app/relay/internal/account"
	"eduops.app/relay/internal/http/handler"
	"eduops.app/relay/internal/http/handler/webhook"
	"eduops.app/relay/internal/service"
)

type RouterConfig struct {
	TraceHeaderName string
	AdminAPIKey     string
}

func SetupRoutes(router *gin.Engine, services *service.Services, accounts *account.Router, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	webhookHandler := webhook.NewPlatformWebhookHandler(accounts, services.WebhookIngest(), cfg.TraceHeaderName)
	WebhookRouter(router.Group("/webhooks"), webhookHandler)

	v1 := router.Group("/api/v1")
	{
		dashboardHandler := handler.NewDashboardHandler(services.Dashboard())
		DashboardRouter(v1, dashboardHandler)

		v1.GET("/webhooks/schema", handler.WebhookSchema)

		adminHandler := handler.NewAdminHandler(services.Replay(), accounts)
		AdminRouter(v1.Group("/admin"), adminHandler, cfg.AdminAPIKey)
	}
}

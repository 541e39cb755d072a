package router

import (
	"github.com/gin-gonic/gin"

	"eduops.app/relay/internal/http/handler"
	"eduops.app/relay/internal/http/middleware"
)

// AdminRouter mounts the operator routes. All of them require the admin API key.
func AdminRouter(rg *gin.RouterGroup, h *handler.AdminHandler, adminAPIKey string) {
	admin := rg.Group("")
	admin.Use(middleware.RequireAdminAPIKey(adminAPIKey))
	{
		admin.POST("/accounts/:account/sync", h.RequestSync)
		admin.POST("/webhooks/:id/replay", h.ReplayWebhook)
	}
}

package router

import (
	"github.com/gin-gonic/gin"

	"eduops.app/relay/internal/http/handler/webhook"
)

func WebhookRouter(router *gin.RouterGroup, h *webhook.PlatformWebhookHandler) {
	router.POST("/:account", h.HandleEvent)
}

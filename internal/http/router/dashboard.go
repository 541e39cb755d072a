package router

import (
	"github.com/gin-gonic/gin"

	"eduops.app/relay/internal/http/handler"
)

func DashboardRouter(router *gin.RouterGroup, h *handler.DashboardHandler) {
	router.GET("/conversations", h.ListConversations)
	router.GET("/accounts/status", h.AccountStatuses)
}

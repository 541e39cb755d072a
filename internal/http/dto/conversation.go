package dto

import (
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/service"
)

type ListConversationsQuery struct {
	Account string `form:"account" binding:"required"`
	Status  string `form:"status"`
	Limit   int32  `form:"limit" binding:"omitempty,min=1,max=500"`
}

type ListConversationsResponse struct {
	Conversations []model.ConversationRecord `json:"conversations"`
	Account       string                     `json:"account"`
	Count         int                        `json:"count"`
}

type AccountStatusResponse struct {
	Accounts []service.AccountStatus `json:"accounts"`
}

type SyncRequestedResponse struct {
	Account string `json:"account"`
	Status  string `json:"status"`
}

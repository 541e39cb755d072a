package model

import (
	"fmt"
	"strings"
)

// Subscriber is a read-only snapshot of a contact on the platform. Only
// Phone is guaranteed to be filled; every name field may be null or blank.
type Subscriber struct {
	ID           RemoteID       `json:"id"`
	Phone        string         `json:"phone"`
	Name         *string        `json:"name,omitempty"`
	Email        *string        `json:"email,omitempty"`
	FullName     *string        `json:"full_name,omitempty"`
	FirstName    *string        `json:"first_name,omitempty"`
	LastName     *string        `json:"last_name,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
	CreatedAt    RemoteTime     `json:"created_at"`
	UpdatedAt    RemoteTime     `json:"updated_at"`

	// Account is set by the client from the credentials used to fetch it.
	Account Account `json:"-"`
}

// Manager is a staff profile. It can receive assignments only when
// AssignChat is positive.
type Manager struct {
	ID         RemoteID `json:"id"`
	FullName   string   `json:"full_name"`
	Email      string   `json:"email"`
	AssignChat int      `json:"assign_chat"`

	Account Account `json:"-"`
}

func (m Manager) Eligible() bool {
	return m.AssignChat > 0
}

// ConversationState is the platform's own status string.
type ConversationState string

const (
	RemoteStateOpen   ConversationState = "open"
	RemoteStateClosed ConversationState = "closed"
)

// RemoteConversation is one entry of the conversation listing.
type RemoteConversation struct {
	ID            RemoteID          `json:"id"`
	SubscriberID  RemoteID          `json:"subscriber_id"`
	Subscriber    *Subscriber       `json:"subscriber,omitempty"`
	ManagerID     RemoteID          `json:"manager_id"`
	Department    string            `json:"department"`
	Status        ConversationState `json:"status"`
	CreatedAt     RemoteTime        `json:"created_at"`
	UpdatedAt     RemoteTime        `json:"updated_at"`
	FirstReplyAt  RemoteTime        `json:"first_reply_at"`
	LastMessageAt RemoteTime        `json:"last_message_at"`
	ClosedAt      RemoteTime        `json:"closed_at"`
	ReopenedAt    RemoteTime        `json:"reopened_at"`

	Account Account `json:"-"`
}

// Validate checks the fields the merge path cannot do without.
func (c RemoteConversation) Validate() error {
	var missing []string
	if c.ID == "" {
		missing = append(missing, "id")
	}
	if c.UpdatedAt.IsZero() {
		missing = append(missing, "updated_at")
	}
	if c.SubscriberID == "" && (c.Subscriber == nil || c.Subscriber.ID == "") {
		missing = append(missing, "subscriber_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Message is one entry of a conversation's message listing.
type Message struct {
	ID        RemoteID   `json:"id"`
	Direction string     `json:"direction"` // "in" from the subscriber, "out" from staff
	ManagerID RemoteID   `json:"manager_id"`
	Text      string     `json:"text"`
	CreatedAt RemoteTime `json:"created_at"`
}

func (m Message) Outbound() bool {
	return m.Direction == "out"
}

package mapper

import (
	"context"

	"eduops.app/relay/internal/domain"
)

// EventMapper turns a provider webhook into a canonical event type.
type EventMapper interface {
	Map(ctx context.Context, body map[string]any, headers map[string]string) (domain.EventType, error)
}

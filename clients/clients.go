package clients

import (
	"context"

	"relaybot/models"
)

// Transport is the outbound side of a chat platform connection. Adapters for
// concrete platforms live in subpackages; the pipeline itself only ever talks
// to this interface.
type Transport interface {
	Send(ctx context.Context, chatID, content string, opts *models.SendOptions) error
	React(ctx context.Context, chatID, emoji, messageRef string) error
}

// EventHandler receives inbound events pumped by a transport adapter
type EventHandler func(ctx context.Context, event models.InboundEvent)

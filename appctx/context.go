package appctx

import (
	"context"

	"relaybot/models"
)

// Context key for storing the inbound event
type contextKey string

const EventContextKey contextKey = "inbound_event"

// SetEvent adds the inbound event to the handler context
func SetEvent(ctx context.Context, event *models.InboundEvent) context.Context {
	return context.WithValue(ctx, EventContextKey, event)
}

// GetEvent extracts the inbound event from the handler context
func GetEvent(ctx context.Context) (*models.InboundEvent, bool) {
	event, ok := ctx.Value(EventContextKey).(*models.InboundEvent)
	return event, ok
}

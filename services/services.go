package services

import (
	"context"

	"github.com/samber/mo"

	"relaybot/models"
)

// PermissionsService defines the interface for the permission gate and the
// blocked-identity set
type PermissionsService interface {
	HasPermission(identity, command string) bool
	Grant(ctx context.Context, identity, command string) error
	Revoke(ctx context.Context, identity, command string) error
	IsBlocked(identity string) bool
	Block(ctx context.Context, identity string) error
	Unblock(ctx context.Context, identity string) error
}

// RateLimiterService defines the interface for per-identity sliding-window
// admission control
type RateLimiterService interface {
	Admit(identity string) bool
	Sweep()
}

// CommandRegistryService defines the interface for plugin loading and command
// resolution
type CommandRegistryService interface {
	Load(source models.PluginSource) (*models.PluginRecord, error)
	Unload(sourceKey string) error
	Resolve(name string) mo.Option[*models.CommandDescriptor]
	ListCommands() []*models.CommandDescriptor
	CommandNames() []string
	ListPlugins() []*models.PluginRecord
	HandleSourceEvent(event models.SourceEvent) error
}

// ProcessingQueueService defines the interface for the bounded priority queue
type ProcessingQueueService interface {
	Submit(payload any, handler func(ctx context.Context) error, priority models.Priority) bool
	Stats() models.QueueStats
	Stop()
}

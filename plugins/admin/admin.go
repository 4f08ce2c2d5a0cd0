package admin

import (
	"context"
	"fmt"
	"strings"

	"relaybot/core"
	"relaybot/models"
	"relaybot/services"
)

// AdminPlugin bundles the owner-only moderation commands: permission grants,
// revokes and the blocklist
type AdminPlugin struct {
	permissions services.PermissionsService
	registry    services.CommandRegistryService
}

func NewAdminPlugin(permissions services.PermissionsService, registry services.CommandRegistryService) *AdminPlugin {
	return &AdminPlugin{
		permissions: permissions,
		registry:    registry,
	}
}

func (p *AdminPlugin) Name() string        { return "admin" }
func (p *AdminPlugin) Version() string     { return "1.0.0" }
func (p *AdminPlugin) Description() string { return "permission and blocklist administration" }

func (p *AdminPlugin) Commands() []models.CommandDescriptor {
	return []models.CommandDescriptor{
		{
			Name:        "grant",
			Category:    "admin",
			Description: "Grant an identity a command: grant <identity> <command|*>",
			Capability:  models.CapabilityOwner,
			Handler:     p.handleGrant,
		},
		{
			Name:        "revoke",
			Category:    "admin",
			Description: "Revoke a granted command: revoke <identity> <command|*>",
			Capability:  models.CapabilityOwner,
			Handler:     p.handleRevoke,
		},
		{
			Name:        "block",
			Category:    "admin",
			Description: "Block an identity from all commands: block <identity>",
			Capability:  models.CapabilityOwner,
			Handler:     p.handleBlock,
		},
		{
			Name:        "unblock",
			Category:    "admin",
			Description: "Remove an identity from the blocklist: unblock <identity>",
			Capability:  models.CapabilityOwner,
			Handler:     p.handleUnblock,
		},
		{
			Name:        "plugins",
			Category:    "admin",
			Description: "List loaded plugins",
			Capability:  models.CapabilityOwner,
			Handler:     p.handlePlugins,
		},
	}
}

func (p *AdminPlugin) handleGrant(ctx context.Context, cmdCtx *models.CommandContext) error {
	if len(cmdCtx.Args) != 2 {
		return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, "Usage: grant <identity> <command|*>", nil)
	}

	identity, command := cmdCtx.Args[0], cmdCtx.Args[1]
	if err := p.permissions.Grant(ctx, identity, command); err != nil {
		return fmt.Errorf("failed to grant %s to %s: %w", command, identity, err)
	}
	return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID,
		fmt.Sprintf("Granted %s to %s", command, identity), nil)
}

func (p *AdminPlugin) handleRevoke(ctx context.Context, cmdCtx *models.CommandContext) error {
	if len(cmdCtx.Args) != 2 {
		return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, "Usage: revoke <identity> <command|*>", nil)
	}

	identity, command := cmdCtx.Args[0], cmdCtx.Args[1]
	if err := p.permissions.Revoke(ctx, identity, command); err != nil {
		if core.IsNotFoundError(err) {
			return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID,
				fmt.Sprintf("No grant of %s for %s", command, identity), nil)
		}
		return fmt.Errorf("failed to revoke %s from %s: %w", command, identity, err)
	}
	return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID,
		fmt.Sprintf("Revoked %s from %s", command, identity), nil)
}

func (p *AdminPlugin) handleBlock(ctx context.Context, cmdCtx *models.CommandContext) error {
	if len(cmdCtx.Args) != 1 {
		return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, "Usage: block <identity>", nil)
	}

	identity := cmdCtx.Args[0]
	if identity == cmdCtx.Event.SenderID {
		return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, "Refusing to block yourself", nil)
	}
	if err := p.permissions.Block(ctx, identity); err != nil {
		return fmt.Errorf("failed to block %s: %w", identity, err)
	}
	return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, fmt.Sprintf("Blocked %s", identity), nil)
}

func (p *AdminPlugin) handleUnblock(ctx context.Context, cmdCtx *models.CommandContext) error {
	if len(cmdCtx.Args) != 1 {
		return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, "Usage: unblock <identity>", nil)
	}

	identity := cmdCtx.Args[0]
	if err := p.permissions.Unblock(ctx, identity); err != nil {
		return fmt.Errorf("failed to unblock %s: %w", identity, err)
	}
	return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, fmt.Sprintf("Unblocked %s", identity), nil)
}

func (p *AdminPlugin) handlePlugins(ctx context.Context, cmdCtx *models.CommandContext) error {
	records := p.registry.ListPlugins()

	var lines []string
	for _, record := range records {
		lines = append(lines, fmt.Sprintf("%s v%s (%d commands) - %s",
			record.Name, record.Version, len(record.RegisteredNames), record.Description))
	}
	if len(lines) == 0 {
		lines = append(lines, "No plugins loaded")
	}
	return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, strings.Join(lines, "\n"), nil)
}

package general

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"relaybot/appctx"
	"relaybot/models"
	"relaybot/services"
)

// GeneralPlugin bundles the unprivileged commands every deployment carries
type GeneralPlugin struct {
	queue     services.ProcessingQueueService
	registry  services.CommandRegistryService
	startedAt time.Time
}

func NewGeneralPlugin(queue services.ProcessingQueueService, registry services.CommandRegistryService) *GeneralPlugin {
	return &GeneralPlugin{
		queue:     queue,
		registry:  registry,
		startedAt: time.Now(),
	}
}

func (p *GeneralPlugin) Name() string        { return "general" }
func (p *GeneralPlugin) Version() string     { return "1.0.0" }
func (p *GeneralPlugin) Description() string { return "ping, uptime, stats and help" }

func (p *GeneralPlugin) Commands() []models.CommandDescriptor {
	return []models.CommandDescriptor{
		{
			Name:        "ping",
			Aliases:     []string{"p"},
			Category:    "general",
			Description: "Check that the bot is alive",
			Handler:     p.handlePing,
		},
		{
			Name:        "uptime",
			Category:    "general",
			Description: "Show how long the bot has been running",
			Handler:     p.handleUptime,
		},
		{
			Name:        "stats",
			Category:    "general",
			Description: "Show processing queue counters",
			Handler:     p.handleStats,
		},
		{
			Name:        "help",
			Aliases:     []string{"menu"},
			Category:    "general",
			Description: "List available commands",
			Handler:     p.handleHelp,
		},
	}
}

func (p *GeneralPlugin) handlePing(ctx context.Context, cmdCtx *models.CommandContext) error {
	// Acknowledge the triggering message with a reaction when the pipeline
	// carried it in; a failed reaction never fails the command
	if event, ok := appctx.GetEvent(ctx); ok && event.MessageRef != "" {
		if err := cmdCtx.Replier.React(ctx, event.ChatID, "🏓", event.MessageRef); err != nil {
			log.Printf("⚠️ Failed to react to ping message: %v", err)
		}
	}
	return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, "pong", nil)
}

func (p *GeneralPlugin) handleUptime(ctx context.Context, cmdCtx *models.CommandContext) error {
	uptime := time.Since(p.startedAt).Round(time.Second)
	return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, fmt.Sprintf("Up for %s", uptime), nil)
}

func (p *GeneralPlugin) handleStats(ctx context.Context, cmdCtx *models.CommandContext) error {
	stats := p.queue.Stats()
	message := fmt.Sprintf("Processed: %d\nFailed: %d\nPending: %d\nIn flight: %d",
		stats.Processed, stats.Failed, stats.Pending, stats.InFlight)
	return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, message, nil)
}

func (p *GeneralPlugin) handleHelp(ctx context.Context, cmdCtx *models.CommandContext) error {
	byCategory := make(map[string][]*models.CommandDescriptor)
	var categories []string
	for _, descriptor := range p.registry.ListCommands() {
		category := descriptor.Category
		if category == "" {
			category = "other"
		}
		if _, seen := byCategory[category]; !seen {
			categories = append(categories, category)
		}
		byCategory[category] = append(byCategory[category], descriptor)
	}

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, category := range categories {
		fmt.Fprintf(&b, "\n%s:\n", category)
		for _, descriptor := range byCategory[category] {
			fmt.Fprintf(&b, "  %s - %s\n", descriptor.Name, descriptor.Description)
		}
	}

	return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, b.String(), nil)
}

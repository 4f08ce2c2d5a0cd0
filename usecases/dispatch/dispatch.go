package dispatch

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"relaybot/appctx"
	"relaybot/clients"
	"relaybot/models"
	"relaybot/services"
	"relaybot/utils"
)

const (
	maxSuggestions      = 3
	suggestionThreshold = 0.5
)

type Config struct {
	// CommandPrefix marks a message body as a command invocation
	CommandPrefix string
	// OwnerID is the identity that bypasses the permission gate and holds
	// the owner capability
	OwnerID string
}

// DispatchUseCase classifies inbound events, gates them, and routes command
// invocations through the processing queue to the registry. It holds no
// per-event state beyond the transient context it builds for each handler.
type DispatchUseCase struct {
	cfg         Config
	registry    services.CommandRegistryService
	queue       services.ProcessingQueueService
	permissions services.PermissionsService
	rateLimiter services.RateLimiterService
	transport   clients.Transport
}

func NewDispatchUseCase(
	cfg Config,
	registry services.CommandRegistryService,
	queue services.ProcessingQueueService,
	permissions services.PermissionsService,
	rateLimiter services.RateLimiterService,
	transport clients.Transport,
) *DispatchUseCase {
	utils.AssertInvariant(cfg.CommandPrefix != "", "command prefix cannot be empty")
	utils.AssertInvariant(cfg.OwnerID != "", "owner identity cannot be empty")

	return &DispatchUseCase{
		cfg:         cfg,
		registry:    registry,
		queue:       queue,
		permissions: permissions,
		rateLimiter: rateLimiter,
		transport:   transport,
	}
}

// ProcessInboundEvent runs the per-event state machine: classify, filter by
// directionality, gate, compute priority and enqueue. Nothing it does can
// surface an error to the remote party except the unknown-command reply.
func (d *DispatchUseCase) ProcessInboundEvent(ctx context.Context, event models.InboundEvent) {
	if !event.HasBody() {
		return
	}

	commandName, args, isCommand := d.parseCommand(event.Body)

	// Self-originated events are processed only as command invocations and
	// bypass the permission gate: the operator account is implicitly trusted
	if event.IsSelfOriginated && !isCommand {
		return
	}

	if !event.IsSelfOriginated {
		if !isCommand {
			// Ordinary conversational text from others terminates here
			return
		}
		if !d.permissions.HasPermission(event.SenderID, commandName) {
			log.Printf("🔒 Permission denied for identity %s on command %s", event.SenderID, commandName)
			return
		}
	}

	priority := d.priorityFor(event, commandName)
	accepted := d.queue.Submit(event, func(handlerCtx context.Context) error {
		return d.executeCommand(handlerCtx, event, commandName, args)
	}, priority)
	if !accepted {
		log.Printf("⚠️ Queue rejected command %s from %s (backpressure)", commandName, event.SenderID)
	}
}

// priorityFor places owner and operator traffic at HIGH, any other recognized
// command at NORMAL, and everything else at LOW
func (d *DispatchUseCase) priorityFor(event models.InboundEvent, commandName string) models.Priority {
	if event.IsSelfOriginated || event.SenderID == d.cfg.OwnerID {
		return models.PriorityHigh
	}
	if d.registry.Resolve(commandName).IsPresent() {
		return models.PriorityNormal
	}
	return models.PriorityLow
}

// executeCommand runs inside the queue's handler invocation. Admission is
// re-checked here because queue residency takes time; a returned error means
// the queue should retry per its policy.
func (d *DispatchUseCase) executeCommand(ctx context.Context, event models.InboundEvent, commandName string, args []string) error {
	if !event.IsSelfOriginated {
		if d.permissions.IsBlocked(event.SenderID) {
			log.Printf("🚫 Dropping command %s from blocked identity %s", commandName, event.SenderID)
			return nil
		}
		if !d.rateLimiter.Admit(event.SenderID) {
			log.Printf("⏳ Rate limited identity %s on command %s", event.SenderID, commandName)
			return nil
		}
	}

	maybeDescriptor := d.registry.Resolve(commandName)
	if maybeDescriptor.IsAbsent() {
		return d.replyUnknownCommand(ctx, event, commandName)
	}
	descriptor := maybeDescriptor.MustGet()

	// Scope and capability mismatches are silent: command existence is not
	// confirmed to unauthorized callers
	if !d.scopeAllows(descriptor, event) {
		log.Printf("🔒 Command %s rejected by scope %s for chat %s", descriptor.Name, descriptor.Scope, event.ChatID)
		return nil
	}
	if !d.capabilityAllows(descriptor, event) {
		log.Printf("🔒 Command %s requires capability %s, denied for %s", descriptor.Name, descriptor.Capability, event.SenderID)
		return nil
	}

	handlerCtx := appctx.SetEvent(ctx, &event)
	cmdCtx := &models.CommandContext{
		Event:   event,
		Command: descriptor.Name,
		Args:    args,
		Replier: d.transport,
	}

	if err := descriptor.Handler(handlerCtx, cmdCtx); err != nil {
		log.Printf("❌ Command %s failed for identity %s: %v", descriptor.Name, event.SenderID, err)
		return fmt.Errorf("command %s failed: %w", descriptor.Name, err)
	}
	return nil
}

func (d *DispatchUseCase) scopeAllows(descriptor *models.CommandDescriptor, event models.InboundEvent) bool {
	switch descriptor.Scope {
	case models.ScopeGroupOnly:
		return event.IsGroupChat
	case models.ScopePrivateOnly:
		return !event.IsGroupChat
	default:
		return true
	}
}

func (d *DispatchUseCase) capabilityAllows(descriptor *models.CommandDescriptor, event models.InboundEvent) bool {
	trusted := event.IsSelfOriginated || event.SenderID == d.cfg.OwnerID
	switch descriptor.Capability {
	case models.CapabilityOwner:
		return trusted
	case models.CapabilitySudo:
		return trusted || d.permissions.HasPermission(event.SenderID, string(models.CapabilitySudo))
	default:
		return true
	}
}

func (d *DispatchUseCase) replyUnknownCommand(ctx context.Context, event models.InboundEvent, commandName string) error {
	message := fmt.Sprintf("Unknown command: %s%s", d.cfg.CommandPrefix, commandName)
	if suggestions := d.suggestCommands(commandName); len(suggestions) > 0 {
		for i, suggestion := range suggestions {
			suggestions[i] = d.cfg.CommandPrefix + suggestion
		}
		message += fmt.Sprintf("\nDid you mean: %s?", strings.Join(suggestions, ", "))
	}

	if err := d.transport.Send(ctx, event.ChatID, message, &models.SendOptions{
		QuotedMessageRef: event.MessageRef,
	}); err != nil {
		return fmt.Errorf("failed to send unknown command reply: %w", err)
	}
	return nil
}

// suggestCommands ranks the registered command names (aliases included) by
// edit-distance similarity and returns up to three above the threshold
func (d *DispatchUseCase) suggestCommands(commandName string) []string {
	type scored struct {
		name  string
		score float64
	}

	var candidates []scored
	for _, name := range d.registry.CommandNames() {
		if score := utils.Similarity(commandName, name); score > suggestionThreshold {
			candidates = append(candidates, scored{name: name, score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})

	suggestions := make([]string, 0, maxSuggestions)
	for _, candidate := range candidates {
		if len(suggestions) == maxSuggestions {
			break
		}
		suggestions = append(suggestions, candidate.name)
	}
	return suggestions
}

// parseCommand splits a message body into command name and arguments. A body
// is a command iff it starts with the configured prefix; the first token
// after the prefix is case-folded into the name.
func (d *DispatchUseCase) parseCommand(body string) (string, []string, bool) {
	if !strings.HasPrefix(body, d.cfg.CommandPrefix) {
		return "", nil, false
	}

	fields := strings.Fields(strings.TrimPrefix(body, d.cfg.CommandPrefix))
	if len(fields) == 0 {
		return "", nil, false
	}

	return strings.ToLower(fields[0]), fields[1:], true
}

// NotifyFailedCommand reports a generic failure to the requester after the
// queue has exhausted retries for their command. Wired as the queue's
// OnDropped callback at composition time.
func (d *DispatchUseCase) NotifyFailedCommand(item *models.QueueItem) {
	event, ok := item.Payload.(models.InboundEvent)
	if !ok {
		return
	}

	log.Printf("❌ Reporting exhausted command item %s to chat %s", item.ID, event.ChatID)
	err := d.transport.Send(context.Background(), event.ChatID,
		"Something went wrong while running your command. Please try again later.",
		&models.SendOptions{QuotedMessageRef: event.MessageRef})
	if err != nil {
		log.Printf("❌ Failed to deliver failure notice to chat %s: %v", event.ChatID, err)
	}
}

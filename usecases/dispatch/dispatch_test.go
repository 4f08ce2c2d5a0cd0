package dispatch

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relaybot/clients"
	"relaybot/models"
	permissionsservice "relaybot/services/permissions"
	queueservice "relaybot/services/queue"
	ratelimitservice "relaybot/services/ratelimit"
	registryservice "relaybot/services/registry"
)

type fixture struct {
	dispatch    *DispatchUseCase
	registry    *registryservice.CommandRegistry
	queue       *queueservice.ProcessingQueue
	permissions *permissionsservice.MockPermissionsService
	transport   *clients.MockTransport
}

type staticPlugin struct {
	name     string
	commands []models.CommandDescriptor
}

func (p *staticPlugin) Name() string                         { return p.name }
func (p *staticPlugin) Version() string                      { return "1.0.0" }
func (p *staticPlugin) Description() string                  { return "test plugin" }
func (p *staticPlugin) Commands() []models.CommandDescriptor { return p.commands }

func newFixture(t *testing.T, rateLimit int, commands ...models.CommandDescriptor) *fixture {
	t.Helper()

	registry := registryservice.NewCommandRegistry()
	if len(commands) > 0 {
		_, err := registry.Load(&staticPlugin{name: "test", commands: commands})
		require.NoError(t, err)
	}

	permissions := &permissionsservice.MockPermissionsService{}
	transport := &clients.MockTransport{}
	rateLimiter := ratelimitservice.NewRateLimiter(rateLimit, time.Minute)

	queue := queueservice.NewProcessingQueue(queueservice.Config{
		MaxPending:  32,
		Concurrency: 1,
		MaxRetries:  1,
	})
	t.Cleanup(queue.Stop)

	dispatchUseCase := NewDispatchUseCase(
		Config{CommandPrefix: ".", OwnerID: "owner-1"},
		registry, queue, permissions, rateLimiter, transport,
	)
	queue.SetOnDropped(dispatchUseCase.NotifyFailedCommand)

	return &fixture{
		dispatch:    dispatchUseCase,
		registry:    registry,
		queue:       queue,
		permissions: permissions,
		transport:   transport,
	}
}

func (f *fixture) waitSettled(t *testing.T, processed int) {
	t.Helper()
	require.Eventually(t, func() bool {
		stats := f.queue.Stats()
		return stats.Processed+stats.Failed >= processed && stats.Pending == 0 && stats.InFlight == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func pingDescriptor(invocations *int64) models.CommandDescriptor {
	return models.CommandDescriptor{
		Name:        "ping",
		Category:    "general",
		Description: "replies with pong",
		Handler: func(ctx context.Context, cmdCtx *models.CommandContext) error {
			if invocations != nil {
				atomic.AddInt64(invocations, 1)
			}
			return cmdCtx.Replier.Send(ctx, cmdCtx.Event.ChatID, "pong", nil)
		},
	}
}

func TestDispatch_EndToEndPingCommand(t *testing.T) {
	var invocations int64
	f := newFixture(t, 10, pingDescriptor(&invocations))

	f.permissions.On("HasPermission", "sender-1", "ping").Return(true)
	f.permissions.On("IsBlocked", "sender-1").Return(false)
	f.transport.On("Send", mock.Anything, "chat-1", "pong", (*models.SendOptions)(nil)).Return(nil)

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		Body:     ".ping",
		SenderID: "sender-1",
		ChatID:   "chat-1",
	})

	f.waitSettled(t, 1)

	assert.Equal(t, int64(1), atomic.LoadInt64(&invocations))
	f.transport.AssertNumberOfCalls(t, "Send", 1)
	f.permissions.AssertExpectations(t)
}

func TestDispatch_NonCommandTextIsIgnored(t *testing.T) {
	f := newFixture(t, 10, pingDescriptor(nil))

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		Body:     "hello",
		SenderID: "sender-1",
		ChatID:   "chat-1",
	})

	assert.Equal(t, models.QueueStats{}, f.queue.Stats())
	f.transport.AssertNotCalled(t, "Send")
	f.permissions.AssertNotCalled(t, "HasPermission")
}

func TestDispatch_EmptyBodyIsIgnored(t *testing.T) {
	f := newFixture(t, 10, pingDescriptor(nil))

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		SenderID: "sender-1",
		ChatID:   "chat-1",
	})

	assert.Equal(t, models.QueueStats{}, f.queue.Stats())
}

func TestDispatch_UnknownCommandSuggestsSimilar(t *testing.T) {
	f := newFixture(t, 10, pingDescriptor(nil))

	f.permissions.On("HasPermission", "sender-1", "pig").Return(true)
	f.permissions.On("IsBlocked", "sender-1").Return(false)
	f.transport.On("Send", mock.Anything, "chat-1", mock.MatchedBy(func(content string) bool {
		return strings.Contains(content, "Unknown command: .pig") && strings.Contains(content, ".ping")
	}), mock.Anything).Return(nil)

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		Body:       ".pig",
		SenderID:   "sender-1",
		ChatID:     "chat-1",
		MessageRef: "msg-1",
	})

	f.waitSettled(t, 1)
	f.transport.AssertExpectations(t)
}

func TestDispatch_PermissionDeniedIsSilent(t *testing.T) {
	var invocations int64
	f := newFixture(t, 10, pingDescriptor(&invocations))

	f.permissions.On("HasPermission", "sender-1", "ping").Return(false)

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		Body:     ".ping",
		SenderID: "sender-1",
		ChatID:   "chat-1",
	})

	assert.Equal(t, models.QueueStats{}, f.queue.Stats())
	assert.Equal(t, int64(0), atomic.LoadInt64(&invocations))
	f.transport.AssertNotCalled(t, "Send")
}

func TestDispatch_SelfOriginatedCommandBypassesPermissionGate(t *testing.T) {
	// Pins the trust boundary: the operator account's own commands never
	// consult the permission gate
	var invocations int64
	f := newFixture(t, 10, pingDescriptor(&invocations))

	f.transport.On("Send", mock.Anything, "chat-1", "pong", (*models.SendOptions)(nil)).Return(nil)

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		Body:             ".ping",
		SenderID:         "bot-account",
		ChatID:           "chat-1",
		IsSelfOriginated: true,
	})

	f.waitSettled(t, 1)

	assert.Equal(t, int64(1), atomic.LoadInt64(&invocations))
	f.permissions.AssertNotCalled(t, "HasPermission")
	f.permissions.AssertNotCalled(t, "IsBlocked")
}

func TestDispatch_SelfOriginatedNonCommandIsIgnored(t *testing.T) {
	f := newFixture(t, 10, pingDescriptor(nil))

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		Body:             "status update from the bot",
		SenderID:         "bot-account",
		ChatID:           "chat-1",
		IsSelfOriginated: true,
	})

	assert.Equal(t, models.QueueStats{}, f.queue.Stats())
}

func TestDispatch_BlockedIdentityDroppedAtExecution(t *testing.T) {
	var invocations int64
	f := newFixture(t, 10, pingDescriptor(&invocations))

	f.permissions.On("HasPermission", "sender-1", "ping").Return(true)
	f.permissions.On("IsBlocked", "sender-1").Return(true)

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		Body:     ".ping",
		SenderID: "sender-1",
		ChatID:   "chat-1",
	})

	f.waitSettled(t, 1)

	assert.Equal(t, int64(0), atomic.LoadInt64(&invocations))
	f.transport.AssertNotCalled(t, "Send")
}

func TestDispatch_RateLimitDropsExcessCommands(t *testing.T) {
	var invocations int64
	f := newFixture(t, 2, pingDescriptor(&invocations))

	f.permissions.On("HasPermission", "sender-1", "ping").Return(true)
	f.permissions.On("IsBlocked", "sender-1").Return(false)
	f.transport.On("Send", mock.Anything, "chat-1", "pong", (*models.SendOptions)(nil)).Return(nil)

	for i := 0; i < 4; i++ {
		f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
			Body:     ".ping",
			SenderID: "sender-1",
			ChatID:   "chat-1",
		})
	}

	f.waitSettled(t, 4)

	assert.Equal(t, int64(2), atomic.LoadInt64(&invocations))
	f.transport.AssertNumberOfCalls(t, "Send", 2)
}

func TestDispatch_GroupOnlyCommandSilentInPrivateChat(t *testing.T) {
	var invocations int64
	descriptor := pingDescriptor(&invocations)
	descriptor.Scope = models.ScopeGroupOnly
	f := newFixture(t, 10, descriptor)

	f.permissions.On("HasPermission", "sender-1", "ping").Return(true)
	f.permissions.On("IsBlocked", "sender-1").Return(false)

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		Body:        ".ping",
		SenderID:    "sender-1",
		ChatID:      "chat-1",
		IsGroupChat: false,
	})

	f.waitSettled(t, 1)

	assert.Equal(t, int64(0), atomic.LoadInt64(&invocations))
	f.transport.AssertNotCalled(t, "Send")
}

func TestDispatch_OwnerCapabilityDeniedForNonOwner(t *testing.T) {
	var invocations int64
	descriptor := pingDescriptor(&invocations)
	descriptor.Capability = models.CapabilityOwner
	f := newFixture(t, 10, descriptor)

	f.permissions.On("HasPermission", "sender-1", "ping").Return(true)
	f.permissions.On("IsBlocked", "sender-1").Return(false)

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		Body:     ".ping",
		SenderID: "sender-1",
		ChatID:   "chat-1",
	})

	f.waitSettled(t, 1)

	assert.Equal(t, int64(0), atomic.LoadInt64(&invocations))
	f.transport.AssertNotCalled(t, "Send")
}

func TestDispatch_OwnerCapabilityAllowedForOwner(t *testing.T) {
	var invocations int64
	descriptor := pingDescriptor(&invocations)
	descriptor.Capability = models.CapabilityOwner
	f := newFixture(t, 10, descriptor)

	f.permissions.On("HasPermission", "owner-1", "ping").Return(true)
	f.permissions.On("IsBlocked", "owner-1").Return(false)
	f.transport.On("Send", mock.Anything, "chat-1", "pong", (*models.SendOptions)(nil)).Return(nil)

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		Body:     ".ping",
		SenderID: "owner-1",
		ChatID:   "chat-1",
	})

	f.waitSettled(t, 1)
	assert.Equal(t, int64(1), atomic.LoadInt64(&invocations))
}

func TestDispatch_FailingHandlerRetriedThenReported(t *testing.T) {
	var invocations int64
	failing := models.CommandDescriptor{
		Name: "flaky",
		Handler: func(ctx context.Context, cmdCtx *models.CommandContext) error {
			atomic.AddInt64(&invocations, 1)
			return assert.AnError
		},
	}
	f := newFixture(t, 10, failing)

	f.permissions.On("HasPermission", "sender-1", "flaky").Return(true)
	f.permissions.On("IsBlocked", "sender-1").Return(false)
	f.transport.On("Send", mock.Anything, "chat-1", mock.MatchedBy(func(content string) bool {
		return strings.Contains(content, "Something went wrong")
	}), mock.Anything).Return(nil)

	f.dispatch.ProcessInboundEvent(context.Background(), models.InboundEvent{
		Body:       ".flaky",
		SenderID:   "sender-1",
		ChatID:     "chat-1",
		MessageRef: "msg-1",
	})

	require.Eventually(t, func() bool {
		return f.queue.Stats().Failed == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Initial attempt plus one retry, then a single generic failure notice
	assert.Equal(t, int64(2), atomic.LoadInt64(&invocations))
	f.transport.AssertNumberOfCalls(t, "Send", 1)
}

func TestDispatch_ParseCommand(t *testing.T) {
	f := newFixture(t, 10)

	name, args, ok := f.dispatch.parseCommand(".ping one two")
	assert.True(t, ok)
	assert.Equal(t, "ping", name)
	assert.Equal(t, []string{"one", "two"}, args)

	name, args, ok = f.dispatch.parseCommand(".PING")
	assert.True(t, ok)
	assert.Equal(t, "ping", name)
	assert.Empty(t, args)

	_, _, ok = f.dispatch.parseCommand("ping")
	assert.False(t, ok)

	_, _, ok = f.dispatch.parseCommand(".")
	assert.False(t, ok)

	_, _, ok = f.dispatch.parseCommand(".   ")
	assert.False(t, ok)
}

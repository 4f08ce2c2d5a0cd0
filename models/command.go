package models

import "context"

// CommandScope restricts where a command may be invoked
type CommandScope string

const (
	ScopeAny         CommandScope = ""
	ScopeGroupOnly   CommandScope = "group-only"
	ScopePrivateOnly CommandScope = "private-only"
)

// Capability is the privilege tag a command requires beyond the per-identity
// permission grant
type Capability string

const (
	CapabilityNone  Capability = ""
	CapabilitySudo  Capability = "sudo"
	CapabilityOwner Capability = "owner"
)

// Replier is the outbound side of a transport as seen by command handlers
type Replier interface {
	Send(ctx context.Context, chatID, content string, opts *SendOptions) error
	React(ctx context.Context, chatID, emoji, messageRef string) error
}

// SendOptions carries optional delivery parameters for an outbound reply
type SendOptions struct {
	QuotedMessageRef string `json:"quoted_message_ref,omitempty"`
}

// CommandContext is the execution context handed to a command handler
type CommandContext struct {
	Event   InboundEvent
	Command string
	Args    []string
	Replier Replier
}

// CommandHandler executes one command invocation to a terminal outcome
type CommandHandler func(ctx context.Context, cmdCtx *CommandContext) error

// CommandDescriptor describes one invocable command: its primary name, alias
// set, metadata and handler
type CommandDescriptor struct {
	Name        string
	Aliases     []string
	Category    string
	Description string
	Capability  Capability
	Scope       CommandScope
	Handler     CommandHandler
}

package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"relaybot/models"
)

// SlackTransport implements the clients.Transport interface on top of the
// Slack Web API. Inbound Slack events arrive through the Events API endpoint,
// not through this adapter, so it only covers the outbound surface.
type SlackTransport struct {
	api *slack.Client
}

func NewSlackTransport(botToken string) *SlackTransport {
	return &SlackTransport{api: slack.New(botToken)}
}

func (t *SlackTransport) Send(ctx context.Context, chatID, content string, opts *models.SendOptions) error {
	msgOptions := []slack.MsgOption{slack.MsgOptionText(content, false)}
	if opts != nil && opts.QuotedMessageRef != "" {
		// Slack models quoting as a threaded reply on the original timestamp
		msgOptions = append(msgOptions, slack.MsgOptionTS(opts.QuotedMessageRef))
	}

	if _, _, err := t.api.PostMessageContext(ctx, chatID, msgOptions...); err != nil {
		return fmt.Errorf("failed to post Slack message: %w", err)
	}
	return nil
}

func (t *SlackTransport) React(ctx context.Context, chatID, emoji, messageRef string) error {
	ref := slack.NewRefToMessage(chatID, messageRef)
	if err := t.api.AddReactionContext(ctx, emoji, ref); err != nil {
		return fmt.Errorf("failed to add Slack reaction: %w", err)
	}
	return nil
}

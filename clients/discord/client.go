package discord

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"relaybot/clients"
	"relaybot/models"
)

// DiscordTransport implements the clients.Transport interface on top of a
// discordgo session and pumps MessageCreate events into the pipeline
type DiscordTransport struct {
	session *discordgo.Session
	handler clients.EventHandler
}

func NewDiscordTransport(botToken string) (*DiscordTransport, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return &DiscordTransport{session: session}, nil
}

// Listen registers the event pump and opens the gateway connection
func (t *DiscordTransport) Listen(handler clients.EventHandler) error {
	log.Printf("📋 Starting to open Discord gateway connection")

	t.handler = handler
	t.session.AddHandler(t.onMessageCreate)

	if err := t.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	log.Printf("✅ Discord gateway connection established")
	return nil
}

func (t *DiscordTransport) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Messages from other bots never enter the pipeline
	if m.Author.Bot && m.Author.ID != s.State.User.ID {
		return
	}

	isGroup := true
	if channel, err := s.Channel(m.ChannelID); err == nil {
		isGroup = channel.Type != discordgo.ChannelTypeDM
	}

	event := models.InboundEvent{
		Body:             m.Content,
		SenderID:         m.Author.ID,
		ChatID:           m.ChannelID,
		MessageRef:       m.ID,
		IsSelfOriginated: m.Author.ID == s.State.User.ID,
		IsGroupChat:      isGroup,
	}
	if m.ReferencedMessage != nil {
		event.QuotedBody = m.ReferencedMessage.Content
	}

	t.handler(context.Background(), event)
}

func (t *DiscordTransport) Send(ctx context.Context, chatID, content string, opts *models.SendOptions) error {
	if opts != nil && opts.QuotedMessageRef != "" {
		_, err := t.session.ChannelMessageSendReply(chatID, content, &discordgo.MessageReference{
			MessageID: opts.QuotedMessageRef,
			ChannelID: chatID,
		})
		if err != nil {
			return fmt.Errorf("failed to send Discord reply: %w", err)
		}
		return nil
	}

	if _, err := t.session.ChannelMessageSend(chatID, content); err != nil {
		return fmt.Errorf("failed to send Discord message: %w", err)
	}
	return nil
}

func (t *DiscordTransport) React(ctx context.Context, chatID, emoji, messageRef string) error {
	if err := t.session.MessageReactionAdd(chatID, messageRef, emoji); err != nil {
		return fmt.Errorf("failed to add Discord reaction: %w", err)
	}
	return nil
}

func (t *DiscordTransport) Close() error {
	log.Printf("📋 Starting to close Discord gateway connection")
	if err := t.session.Close(); err != nil {
		return fmt.Errorf("failed to close Discord connection: %w", err)
	}
	log.Printf("✅ Discord gateway connection closed")
	return nil
}

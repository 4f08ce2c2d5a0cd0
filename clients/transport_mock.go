package clients

import (
	"context"

	"github.com/stretchr/testify/mock"

	"relaybot/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, chatID, content string, opts *models.SendOptions) error {
	args := m.Called(ctx, chatID, content, opts)
	return args.Error(0)
}

func (m *MockTransport) React(ctx context.Context, chatID, emoji, messageRef string) error {
	args := m.Called(ctx, chatID, emoji, messageRef)
	return args.Error(0)
}

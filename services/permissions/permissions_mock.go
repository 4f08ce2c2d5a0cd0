package permissions

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPermissionsService struct {
	mock.Mock
}

func (m *MockPermissionsService) HasPermission(identity, command string) bool {
	args := m.Called(identity, command)
	return args.Bool(0)
}

func (m *MockPermissionsService) Grant(ctx context.Context, identity, command string) error {
	args := m.Called(ctx, identity, command)
	return args.Error(0)
}

func (m *MockPermissionsService) Revoke(ctx context.Context, identity, command string) error {
	args := m.Called(ctx, identity, command)
	return args.Error(0)
}

func (m *MockPermissionsService) IsBlocked(identity string) bool {
	args := m.Called(identity)
	return args.Bool(0)
}

func (m *MockPermissionsService) Block(ctx context.Context, identity string) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockPermissionsService) Unblock(ctx context.Context, identity string) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

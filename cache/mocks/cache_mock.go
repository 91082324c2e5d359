package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Publish(ctx context.Context, channel string, message []byte) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockCache) SetPageDocument(ctx context.Context, sessionId string, number int, doc []byte) error {
	args := m.Called(ctx, sessionId, number, doc)
	return args.Error(0)
}

func (m *MockCache) GetPageDocument(ctx context.Context, sessionId string, number int) ([]byte, error) {
	args := m.Called(ctx, sessionId, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCache) SetActivePage(ctx context.Context, sessionId string, number int) error {
	args := m.Called(ctx, sessionId, number)
	return args.Error(0)
}

func (m *MockCache) GetActivePage(ctx context.Context, sessionId string) (int, error) {
	args := m.Called(ctx, sessionId)
	return args.Int(0), args.Error(1)
}

func (m *MockCache) InvalidateSession(ctx context.Context, sessionId string) error {
	args := m.Called(ctx, sessionId)
	return args.Error(0)
}

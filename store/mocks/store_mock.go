package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
	"github.com/LeoTokuo/canvas-project-online/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateSession(ctx context.Context, doc models.CanvasDocument) (models.Session, error) {
	args := m.Called(ctx, doc)
	return args.Get(0).(models.Session), args.Error(1)
}

func (m *MockStore) GetSession(ctx context.Context, sessionId string) (models.Session, error) {
	args := m.Called(ctx, sessionId)
	return args.Get(0).(models.Session), args.Error(1)
}

func (m *MockStore) UpdateSession(ctx context.Context, sessionId string, data json.RawMessage) (models.Session, error) {
	args := m.Called(ctx, sessionId, data)
	return args.Get(0).(models.Session), args.Error(1)
}

func (m *MockStore) GetPage(ctx context.Context, sessionId string, number int) (models.Page, error) {
	args := m.Called(ctx, sessionId, number)
	return args.Get(0).(models.Page), args.Error(1)
}

func (m *MockStore) UpsertPage(ctx context.Context, sessionId string, number int, doc models.CanvasDocument) error {
	args := m.Called(ctx, sessionId, number, doc)
	return args.Error(0)
}

func (m *MockStore) GetActivePage(ctx context.Context, sessionId string) (int, error) {
	args := m.Called(ctx, sessionId)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) SetActivePage(ctx context.Context, sessionId string, number int) error {
	args := m.Called(ctx, sessionId, number)
	return args.Error(0)
}

func (m *MockStore) GetAccount(ctx context.Context, name string) (models.Account, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(models.Account), args.Error(1)
}

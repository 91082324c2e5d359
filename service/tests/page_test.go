package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	cachemocks "github.com/LeoTokuo/canvas-project-online/cache/mocks"
	"github.com/LeoTokuo/canvas-project-online/models"
	mqmocks "github.com/LeoTokuo/canvas-project-online/mq/mocks"
	"github.com/LeoTokuo/canvas-project-online/service"
	"github.com/LeoTokuo/canvas-project-online/store"
	storemocks "github.com/LeoTokuo/canvas-project-online/store/mocks"
	"github.com/LeoTokuo/canvas-project-online/worker"
)

// Helper to setup the service with mocks
func setupService(t *testing.T) (*service.Service, *storemocks.MockStore, *cachemocks.MockCache, *mqmocks.MockMQ, *worker.SnapshotBatcher) {
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	mockMQ := new(mqmocks.MockMQ)

	// Real batcher; tests verify items are pushed to its channel
	snapshotBatcher := worker.NewSnapshotBatcher(mockStore, 1000)

	svc, err := service.NewService(
		mockStore,
		mockCache,
		mockMQ,
		snapshotBatcher,
		nil,
		[]byte("secret"),
	)
	assert.NoError(t, err)

	return svc, mockStore, mockCache, mockMQ, snapshotBatcher
}

func adminAccount() models.Account {
	return models.Account{Id: "admin", Name: "Admin", Permission: 1}
}

func guestAccount() models.Account {
	return models.Account{Id: "guest", Name: "Guest", Permission: 0}
}

func docWithObject(id string) models.CanvasDocument {
	return models.CanvasDocument{
		Objects: []models.CanvasObject{
			{Id: id, Type: "rect", Left: 1, Top: 2, Width: 3, Height: 4},
		},
	}
}

func TestSwitchPage_ExistingPage(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	sessionId := "session-1"
	outgoing := docWithObject("obj-1700000000-1")
	stored := docWithObject("obj-1700000000-2")

	mockStore.On("GetActivePage", ctx, sessionId).Return(1, nil)
	mockStore.On("UpsertPage", ctx, sessionId, 1, outgoing).Return(nil)
	mockStore.On("SetActivePage", ctx, sessionId, 3).Return(nil)
	mockStore.On("GetPage", ctx, sessionId, 3).Return(models.Page{
		SessionId: sessionId,
		Number:    3,
		Document:  stored,
	}, nil)

	mockCache.On("SetPageDocument", ctx, sessionId, 1, mock.Anything).Return(nil)
	mockCache.On("SetPageDocument", ctx, sessionId, 3, mock.Anything).Return(nil)
	mockCache.On("SetActivePage", ctx, sessionId, 3).Return(nil)
	mockCache.On("Publish", ctx, "room:"+sessionId, mock.Anything).Return(nil)

	got, err := svc.SwitchPage(ctx, adminAccount(), sessionId, 3, outgoing)

	assert.NoError(t, err)
	assert.Equal(t, stored, got)
	mockStore.AssertExpectations(t)
}

func TestSwitchPage_FirstVisitSynthesizesEmptyPage(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	sessionId := "session-1"
	outgoing := docWithObject("obj-1700000000-1")

	mockStore.On("GetActivePage", ctx, sessionId).Return(1, nil)
	mockStore.On("UpsertPage", ctx, sessionId, 1, outgoing).Return(nil)
	mockStore.On("SetActivePage", ctx, sessionId, 2).Return(nil)
	mockStore.On("GetPage", ctx, sessionId, 2).Return(models.Page{}, store.ErrItemNotFound)
	mockStore.On("UpsertPage", ctx, sessionId, 2, models.EmptyDocument()).Return(nil)

	mockCache.On("SetPageDocument", ctx, sessionId, mock.Anything, mock.Anything).Return(nil)
	mockCache.On("SetActivePage", ctx, sessionId, 2).Return(nil)

	var published []byte
	mockCache.On("Publish", ctx, "room:"+sessionId, mock.Anything).Run(func(args mock.Arguments) {
		published = args.Get(2).([]byte)
	}).Return(nil)

	got, err := svc.SwitchPage(ctx, adminAccount(), sessionId, 2, outgoing)

	assert.NoError(t, err)
	assert.Equal(t, models.EmptyDocument(), got)

	// The broadcast reaches the whole room: no origin, page_switch type,
	// payload carrying the empty incoming document
	var envelope models.RoomEnvelope
	assert.NoError(t, json.Unmarshal(published, &envelope))
	assert.Empty(t, envelope.Origin)
	assert.Equal(t, models.EventPageSwitch, envelope.Type)

	var event models.PageSwitchEvent
	assert.NoError(t, json.Unmarshal(envelope.Data, &event))
	assert.Equal(t, 2, event.Page)
	assert.Empty(t, event.CanvasJson.Objects)

	mockStore.AssertExpectations(t)
}

func TestSwitchPage_PermissionDenied(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.SwitchPage(ctx, guestAccount(), "session-1", 2, models.EmptyDocument())

	assert.ErrorIs(t, err, service.ErrPermissionDenied)
	mockStore.AssertNotCalled(t, "UpsertPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "SetActivePage", mock.Anything, mock.Anything, mock.Anything)
	mockCache.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestSwitchPage_InvalidPageNumber(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.SwitchPage(ctx, adminAccount(), "session-1", 0, models.EmptyDocument())
	assert.Error(t, err)

	_, err = svc.SwitchPage(ctx, adminAccount(), "session-1", 1001, models.EmptyDocument())
	assert.Error(t, err)

	mockStore.AssertNotCalled(t, "GetActivePage", mock.Anything, mock.Anything)
}

func TestSwitchPage_SessionNotFound(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetActivePage", ctx, "missing").Return(0, store.ErrItemNotFound)

	_, err := svc.SwitchPage(ctx, adminAccount(), "missing", 2, models.EmptyDocument())

	assert.ErrorIs(t, err, store.ErrItemNotFound)
	mockStore.AssertNotCalled(t, "SetActivePage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSwitchPage_SaveFailureDoesNotRepoint(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	sessionId := "session-1"
	outgoing := models.EmptyDocument()

	mockStore.On("GetActivePage", ctx, sessionId).Return(1, nil)
	mockStore.On("UpsertPage", ctx, sessionId, 1, outgoing).Return(errors.New("dynamodb unavailable"))

	_, err := svc.SwitchPage(ctx, adminAccount(), sessionId, 2, outgoing)

	assert.Error(t, err)
	mockStore.AssertNotCalled(t, "SetActivePage", mock.Anything, mock.Anything, mock.Anything)
	mockCache.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestSwitchPage_BroadcastFailureSwallowed(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	sessionId := "session-1"
	outgoing := models.EmptyDocument()

	mockStore.On("GetActivePage", ctx, sessionId).Return(1, nil)
	mockStore.On("UpsertPage", ctx, sessionId, 1, outgoing).Return(nil)
	mockStore.On("SetActivePage", ctx, sessionId, 2).Return(nil)
	mockStore.On("GetPage", ctx, sessionId, 2).Return(models.Page{
		SessionId: sessionId,
		Number:    2,
		Document:  models.EmptyDocument(),
	}, nil)

	mockCache.On("SetPageDocument", ctx, sessionId, mock.Anything, mock.Anything).Return(nil)
	mockCache.On("SetActivePage", ctx, sessionId, 2).Return(nil)
	mockCache.On("Publish", ctx, "room:"+sessionId, mock.Anything).Return(errors.New("pubsub down"))

	// The switch already persisted; a failed fan-out is not an error
	_, err := svc.SwitchPage(ctx, adminAccount(), sessionId, 2, outgoing)
	assert.NoError(t, err)
}

func TestCurrentPage_CacheHit(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	sessionId := "session-1"
	doc := docWithObject("obj-1")
	docBytes, _ := json.Marshal(doc)

	mockCache.On("GetActivePage", ctx, sessionId).Return(2, nil)
	mockCache.On("GetPageDocument", ctx, sessionId, 2).Return(docBytes, nil)

	number, got, err := svc.CurrentPage(ctx, sessionId)

	assert.NoError(t, err)
	assert.Equal(t, 2, number)
	assert.NotNil(t, got)
	assert.Equal(t, doc, *got)
	mockStore.AssertNotCalled(t, "GetPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestCurrentPage_CacheMissFallsBackToStore(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	sessionId := "session-1"
	doc := docWithObject("obj-1")

	mockCache.On("GetActivePage", ctx, sessionId).Return(-1, errors.New("cache miss"))
	mockStore.On("GetActivePage", ctx, sessionId).Return(1, nil)
	mockCache.On("SetActivePage", ctx, sessionId, 1).Return(nil)

	mockCache.On("GetPageDocument", ctx, sessionId, 1).Return(nil, errors.New("cache miss"))
	mockStore.On("GetPage", ctx, sessionId, 1).Return(models.Page{
		SessionId: sessionId,
		Number:    1,
		Document:  doc,
	}, nil)
	mockCache.On("SetPageDocument", ctx, sessionId, 1, mock.Anything).Return(nil)

	number, got, err := svc.CurrentPage(ctx, sessionId)

	assert.NoError(t, err)
	assert.Equal(t, 1, number)
	assert.NotNil(t, got)
	assert.Equal(t, doc, *got)

	// Cache was re-seeded from the store read
	mockCache.AssertCalled(t, "SetActivePage", ctx, sessionId, 1)
	mockCache.AssertCalled(t, "SetPageDocument", ctx, sessionId, 1, mock.Anything)
}

func TestCurrentPage_PageRowAbsent(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	sessionId := "session-1"

	mockCache.On("GetActivePage", ctx, sessionId).Return(4, nil)
	mockCache.On("GetPageDocument", ctx, sessionId, 4).Return(nil, errors.New("cache miss"))
	mockStore.On("GetPage", ctx, sessionId, 4).Return(models.Page{}, store.ErrItemNotFound)

	number, got, err := svc.CurrentPage(ctx, sessionId)

	assert.NoError(t, err)
	assert.Equal(t, 4, number)
	assert.Nil(t, got)
}

func TestCurrentPage_InvalidSessionId(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	_, _, err := svc.CurrentPage(context.Background(), "bad id with spaces")
	assert.Error(t, err)
}

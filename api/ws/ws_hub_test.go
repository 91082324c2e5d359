package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	cachemocks "github.com/LeoTokuo/canvas-project-online/cache/mocks"
	"github.com/LeoTokuo/canvas-project-online/models"
	"github.com/LeoTokuo/canvas-project-online/service"
)

func testClient(connId string) *Client {
	return &Client{
		connId: connId,
		Send:   make(chan []byte, 8),
	}
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(2 * time.Second):
		assert.FailNow(t, "timed out waiting for message on connection "+c.connId)
		return nil
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		assert.Fail(t, "unexpected message on connection "+c.connId, string(msg))
	case <-time.After(100 * time.Millisecond):
	}
}

// setupRoom starts a hub with two clients joined to the same room and returns
// the captured pub/sub handler, which stands in for the cache backbone.
func setupRoom(t *testing.T, sessionId string) (*Hub, *cachemocks.MockCache, *Client, *Client, func([]byte)) {
	mockCache := new(cachemocks.MockCache)
	handlerCh := make(chan func(message []byte), 1)

	mockCache.On("Subscribe", mock.Anything, "room:"+sessionId, mock.Anything).Run(func(args mock.Arguments) {
		handlerCh <- args.Get(2).(func(message []byte))
	}).Return(nil)

	hub := NewHub(mockCache)
	go hub.Run()

	c1 := testClient("conn-1")
	c2 := testClient("conn-2")
	hub.OpenCh <- c1
	hub.OpenCh <- c2
	hub.JoinCh <- join{client: c1, sessionId: sessionId}
	hub.JoinCh <- join{client: c2, sessionId: sessionId}

	var handler func(message []byte)
	select {
	case handler = <-handlerCh:
	case <-time.After(2 * time.Second):
		assert.FailNow(t, "hub never subscribed to the room channel")
	}

	return hub, mockCache, c1, c2, handler
}

func roomMessage(origin string, msgType string, payload string) []byte {
	envelope := models.RoomEnvelope{
		Origin: origin,
		Type:   msgType,
		Data:   json.RawMessage(payload),
	}
	bytes, _ := json.Marshal(envelope)
	return bytes
}

func TestHub_DeliveryExcludesOrigin(t *testing.T) {
	_, _, c1, c2, publish := setupRoom(t, "session-1")

	publish(roomMessage("conn-1", models.DeltaObjectAdded, `{"sessionId":"session-1","object":{"id":"obj-1"}}`))

	delivered := recv(t, c2)

	var msg message
	assert.NoError(t, json.Unmarshal(delivered, &msg))
	assert.Equal(t, models.DeltaObjectAdded, msg.Type)

	// The envelope's origin field is stripped before fan-out
	assert.NotContains(t, string(delivered), "conn-1")

	assertSilent(t, c1)
}

func TestHub_EmptyOriginReachesWholeRoom(t *testing.T) {
	_, _, c1, c2, publish := setupRoom(t, "session-1")

	// Page switches are published without an origin: the initiator reloads
	// from the broadcast like everyone else
	publish(roomMessage("", models.EventPageSwitch, `{"page":2,"canvasJson":{"objects":[],"background":null}}`))

	var msg1, msg2 message
	assert.NoError(t, json.Unmarshal(recv(t, c1), &msg1))
	assert.NoError(t, json.Unmarshal(recv(t, c2), &msg2))
	assert.Equal(t, models.EventPageSwitch, msg1.Type)
	assert.Equal(t, models.EventPageSwitch, msg2.Type)
}

func TestHub_OneSubscriptionPerRoom(t *testing.T) {
	_, mockCache, _, _, _ := setupRoom(t, "session-1")

	// Both joins in setupRoom share one backbone subscription
	mockCache.AssertNumberOfCalls(t, "Subscribe", 1)
}

func TestHub_ResubscribesWhenRoomRefills(t *testing.T) {
	mockCache := new(cachemocks.MockCache)
	subscribed := make(chan struct{}, 2)

	mockCache.On("Subscribe", mock.Anything, "room:session-1", mock.Anything).Run(func(args mock.Arguments) {
		subscribed <- struct{}{}
	}).Return(nil)

	hub := NewHub(mockCache)
	go hub.Run()

	c1 := testClient("conn-1")
	hub.OpenCh <- c1
	hub.JoinCh <- join{client: c1, sessionId: "session-1"}

	select {
	case <-subscribed:
	case <-time.After(2 * time.Second):
		assert.FailNow(t, "hub never subscribed to the room channel")
	}

	hub.CloseCh <- c1

	// A fresh join after the room emptied needs a new subscription
	c2 := testClient("conn-2")
	hub.OpenCh <- c2
	hub.JoinCh <- join{client: c2, sessionId: "session-1"}

	select {
	case <-subscribed:
	case <-time.After(2 * time.Second):
		assert.FailNow(t, "hub did not resubscribe after the room emptied")
	}
}

func TestHub_RejoinMovesClientBetweenRooms(t *testing.T) {
	hub, mockCache, c1, c2, _ := setupRoom(t, "session-1")

	otherHandlerCh := make(chan func(message []byte), 1)
	mockCache.On("Subscribe", mock.Anything, "room:session-2", mock.Anything).Run(func(args mock.Arguments) {
		otherHandlerCh <- args.Get(2).(func(message []byte))
	}).Return(nil)

	hub.JoinCh <- join{client: c2, sessionId: "session-2"}

	var otherPublish func(message []byte)
	select {
	case otherPublish = <-otherHandlerCh:
	case <-time.After(2 * time.Second):
		assert.FailNow(t, "hub never subscribed to the second room")
	}

	// c2 now only hears the second room
	otherPublish(roomMessage("", models.DeltaObjectRemoved, `{"sessionId":"session-2","objectId":"obj-1"}`))
	var msg message
	assert.NoError(t, json.Unmarshal(recv(t, c2), &msg))
	assert.Equal(t, models.DeltaObjectRemoved, msg.Type)
	assertSilent(t, c1)
}

func TestHub_FallbackBroadcastExcludesSender(t *testing.T) {
	mockCache := new(cachemocks.MockCache)
	hub := NewHub(mockCache)
	go hub.Run()

	c1 := testClient("conn-1")
	c2 := testClient("conn-2")
	c3 := testClient("conn-3")
	hub.OpenCh <- c1
	hub.OpenCh <- c2
	hub.OpenCh <- c3

	payload := []byte(`{"type":"object:added","data":{"object":{"id":"obj-1"}}}`)
	hub.BroadcastAllCh <- fallbackBroadcast{origin: c1, message: payload}

	assert.Equal(t, payload, recv(t, c2))
	assert.Equal(t, payload, recv(t, c3))
	assertSilent(t, c1)
}

func TestHub_JoinSignalsWhenSubscriptionLive(t *testing.T) {
	mockCache := new(cachemocks.MockCache)
	mockCache.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	hub := NewHub(mockCache)
	go hub.Run()

	c1 := testClient("conn-1")
	hub.OpenCh <- c1

	joined := make(chan struct{})
	hub.JoinCh <- join{client: c1, sessionId: "session-1", done: joined}
	select {
	case <-joined:
	case <-time.After(2 * time.Second):
		assert.FailNow(t, "join was never acknowledged")
	}

	// Subscription is established by the time the join is acknowledged, so a
	// snapshot read after this point cannot miss deltas published after it.
	mockCache.AssertCalled(t, "Subscribe", mock.Anything, "room:session-1", mock.Anything)
	assert.Equal(t, "session-1", c1.Room())

	// Re-joining the same room is a no-op but still acknowledged
	again := make(chan struct{})
	hub.JoinCh <- join{client: c1, sessionId: "session-1", done: again}
	select {
	case <-again:
	case <-time.After(2 * time.Second):
		assert.FailNow(t, "repeated join was never acknowledged")
	}
}

func TestHub_JoinSignalsOnSubscribeFailure(t *testing.T) {
	mockCache := new(cachemocks.MockCache)
	mockCache.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	hub := NewHub(mockCache)
	go hub.Run()

	c1 := testClient("conn-1")
	hub.OpenCh <- c1

	joined := make(chan struct{})
	hub.JoinCh <- join{client: c1, sessionId: "session-1", done: joined}
	select {
	case <-joined:
	case <-time.After(2 * time.Second):
		assert.FailNow(t, "failed join was never acknowledged")
	}
	assert.Empty(t, c1.Room())
}

func TestReadLimitCoversLargestValidDocument(t *testing.T) {
	assert.Greater(t, int(maxMessageSize), service.MaxDocumentBytes)
}

package service

import (
	"sync"

	"github.com/LeoTokuo/canvas-project-online/cache"
	"github.com/LeoTokuo/canvas-project-online/mq"
	"github.com/LeoTokuo/canvas-project-online/store"
	"github.com/LeoTokuo/canvas-project-online/worker"
	"golang.org/x/oauth2"
)

type Service struct {
	Store           store.CanvasStore
	Cache           cache.CanvasCache
	MQ              mq.MessageQueue
	SnapshotBatcher *worker.SnapshotBatcher
	OAuthConfigs    map[string]*oauth2.Config
	JWTSecret       []byte

	// Page switches are serialized per session; see switchLock.
	pageSwitchLocks sync.Map
}

func NewService(
	store store.CanvasStore,
	cache cache.CanvasCache,
	mq mq.MessageQueue,
	snapshotBatcher *worker.SnapshotBatcher,
	oauthConfigs map[string]*oauth2.Config,
	jwtSecret []byte,
) (*Service, error) {
	oauthConfigs, err := addOauthEndpointsAndScopes(oauthConfigs)
	if err != nil {
		return nil, err
	}

	return &Service{
		Store:           store,
		Cache:           cache,
		MQ:              mq,
		SnapshotBatcher: snapshotBatcher,
		OAuthConfigs:    oauthConfigs,
		JWTSecret:       jwtSecret,
	}, nil
}

// switchLock returns the mutex serializing page switches for one session.
// The store's read-save-repoint sequence is not transactional, so switches
// on the same session must not interleave within this process.
func (s *Service) switchLock(sessionId string) *sync.Mutex {
	mu, _ := s.pageSwitchLocks.LoadOrStore(sessionId, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// RoomChannel is the pub/sub channel name for a session's room.
func RoomChannel(sessionId string) string {
	return "room:" + sessionId
}

package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/LeoTokuo/canvas-project-online/models"
	"github.com/LeoTokuo/canvas-project-online/worker"
)

// CreateSession persists a new session seeded with the caller's current
// document as page 1 (and as the legacy snapshot blob).
func (s *Service) CreateSession(ctx context.Context, doc models.CanvasDocument) (models.Session, error) {
	if err := ValidateDocument(doc); err != nil {
		return models.Session{}, err
	}

	session, err := s.Store.CreateSession(ctx, doc)
	if err != nil {
		return models.Session{}, err
	}

	// Seed the cache so the creator's join does not fall through to the store
	if docBytes, err := json.Marshal(doc); err == nil {
		s.Cache.SetPageDocument(ctx, session.Id, 1, docBytes)
		s.Cache.SetActivePage(ctx, session.Id, 1)
	}

	return session, nil
}

func (s *Service) GetSession(ctx context.Context, sessionId string) (models.Session, error) {
	if err := ValidateSessionID(sessionId); err != nil {
		return models.Session{}, err
	}

	return s.Store.GetSession(ctx, sessionId)
}

// UpdateSession replaces the session's legacy full-snapshot blob. Returns
// store.ErrItemNotFound when the session does not exist.
func (s *Service) UpdateSession(ctx context.Context, sessionId string, data json.RawMessage) (models.Session, error) {
	if err := ValidateSessionID(sessionId); err != nil {
		return models.Session{}, err
	}
	if err := ValidateSnapshot(data); err != nil {
		return models.Session{}, err
	}

	session, err := s.Store.UpdateSession(ctx, sessionId, data)
	if err != nil {
		return models.Session{}, err
	}

	// Cached page documents may predate the replaced snapshot
	if err := s.Cache.InvalidateSession(ctx, sessionId); err != nil {
		log.Printf("Failed to invalidate cache for session %s: %v", sessionId, err)
	}

	return session, nil
}

// QueueAutosave enqueues an unload-time snapshot save. The write is
// best-effort and asynchronous: the MQ consumer drains jobs into the
// snapshot batcher, which coalesces per session before hitting the store.
func (s *Service) QueueAutosave(ctx context.Context, sessionId string, data json.RawMessage) error {
	if err := ValidateSessionID(sessionId); err != nil {
		return err
	}
	if err := ValidateSnapshot(data); err != nil {
		return err
	}

	body, err := json.Marshal(worker.AutosaveMessage{
		SessionId: sessionId,
		Data:      data,
	})
	if err != nil {
		return err
	}

	return s.MQ.Send(ctx, string(body))
}

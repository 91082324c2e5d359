package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/LeoTokuo/canvas-project-online/models"
	"github.com/LeoTokuo/canvas-project-online/store"
)

var ErrPermissionDenied = errors.New("permission denied")

// SwitchPage moves a session's shared canvas to another page: the caller's
// outgoing document is saved over the current page, the active-page pointer
// is repointed, and the incoming page's document (synthesized empty when the
// page has never been visited) is broadcast to the entire room, initiator
// included, so every member reloads.
//
// Switches for one session are serialized in-process; the store sequence
// itself is not transactional, and a failure mid-switch can leave the pointer
// ahead of the saved document. Callers must treat a failed switch as needing
// inspection, not silent retry.
func (s *Service) SwitchPage(ctx context.Context, caller models.Account, sessionId string, newPage int, outgoing models.CanvasDocument) (models.CanvasDocument, error) {
	// Capability check before any mutation
	if caller.Permission < 1 {
		return models.CanvasDocument{}, ErrPermissionDenied
	}

	if err := ValidateSessionID(sessionId); err != nil {
		return models.CanvasDocument{}, err
	}
	if err := ValidatePageNumber(newPage); err != nil {
		return models.CanvasDocument{}, err
	}
	if err := ValidateDocument(outgoing); err != nil {
		return models.CanvasDocument{}, err
	}

	mu := s.switchLock(sessionId)
	mu.Lock()
	defer mu.Unlock()

	// 1. Resolve the page being switched away from
	oldPage, err := s.Store.GetActivePage(ctx, sessionId)
	if err != nil {
		return models.CanvasDocument{}, err
	}

	// 2. Save the outgoing work over the old page
	if err := s.Store.UpsertPage(ctx, sessionId, oldPage, outgoing); err != nil {
		return models.CanvasDocument{}, err
	}

	// 3. Repoint the session
	if err := s.Store.SetActivePage(ctx, sessionId, newPage); err != nil {
		return models.CanvasDocument{}, err
	}

	// 4. Load the incoming page, synthesizing an empty document on first visit
	incoming, err := s.Store.GetPage(ctx, sessionId, newPage)
	if err != nil {
		if !errors.Is(err, store.ErrItemNotFound) {
			return models.CanvasDocument{}, err
		}
		incoming = models.Page{
			SessionId: sessionId,
			Number:    newPage,
			Document:  models.EmptyDocument(),
		}
		if err := s.Store.UpsertPage(ctx, sessionId, newPage, incoming.Document); err != nil {
			return models.CanvasDocument{}, err
		}
	}

	// Refresh the cache to match what was just persisted
	if oldBytes, err := json.Marshal(outgoing); err == nil {
		s.Cache.SetPageDocument(ctx, sessionId, oldPage, oldBytes)
	}
	if newBytes, err := json.Marshal(incoming.Document); err == nil {
		s.Cache.SetPageDocument(ctx, sessionId, newPage, newBytes)
	}
	s.Cache.SetActivePage(ctx, sessionId, newPage)

	// 5. Broadcast to the whole room. Origin is left empty so no member is
	// excluded: the initiator reloads from the broadcast too.
	event := models.PageSwitchEvent{
		Page:       newPage,
		CanvasJson: incoming.Document,
	}
	eventBytes, err := json.Marshal(event)
	if err == nil {
		envelope := models.RoomEnvelope{Type: models.EventPageSwitch, Data: eventBytes}
		envelopeBytes, _ := json.Marshal(envelope)
		if err := s.Cache.Publish(ctx, RoomChannel(sessionId), envelopeBytes); err != nil {
			// Best-effort fan-out; the switch itself already succeeded
			log.Printf("Failed to broadcast page switch for session %s: %v", sessionId, err)
		}
	}

	return incoming.Document, nil
}

// CurrentPage resolves a session's active page number and that page's stored
// document. The document pointer is nil when the page has no stored document
// yet. Read-only; cache first, store fallback with cache re-seed.
func (s *Service) CurrentPage(ctx context.Context, sessionId string) (int, *models.CanvasDocument, error) {
	if err := ValidateSessionID(sessionId); err != nil {
		return 0, nil, err
	}

	number, err := s.Cache.GetActivePage(ctx, sessionId)
	if err != nil || number < 1 {
		number, err = s.Store.GetActivePage(ctx, sessionId)
		if err != nil {
			return 0, nil, err
		}
		s.Cache.SetActivePage(ctx, sessionId, number)
	}

	if docBytes, err := s.Cache.GetPageDocument(ctx, sessionId, number); err == nil && docBytes != nil {
		var doc models.CanvasDocument
		if err := json.Unmarshal(docBytes, &doc); err == nil {
			return number, &doc, nil
		}
		// Corrupt cache entry; fall through to the store
	}

	page, err := s.Store.GetPage(ctx, sessionId, number)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return number, nil, nil
		}
		return 0, nil, err
	}

	if docBytes, err := json.Marshal(page.Document); err == nil {
		s.Cache.SetPageDocument(ctx, sessionId, number, docBytes)
	}

	return number, &page.Document, nil
}

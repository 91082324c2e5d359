package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/LeoTokuo/canvas-project-online/models"
)

type CanvasStore interface {
	// CreateSession stores a new session with the given document as both the
	// legacy snapshot blob and the page 1 document.
	CreateSession(ctx context.Context, doc models.CanvasDocument) (models.Session, error)
	GetSession(ctx context.Context, sessionId string) (models.Session, error)
	// UpdateSession replaces the legacy full-snapshot blob and returns the
	// updated session.
	UpdateSession(ctx context.Context, sessionId string, data json.RawMessage) (models.Session, error)

	GetPage(ctx context.Context, sessionId string, number int) (models.Page, error)
	// UpsertPage writes a page document, replacing any existing row for the
	// same (session, page number).
	UpsertPage(ctx context.Context, sessionId string, number int, doc models.CanvasDocument) error
	GetActivePage(ctx context.Context, sessionId string) (int, error)
	SetActivePage(ctx context.Context, sessionId string, number int) error

	GetAccount(ctx context.Context, name string) (models.Account, error)
}

// Custom error types for clarity
var ErrItemNotFound = errors.New("item does not exist")

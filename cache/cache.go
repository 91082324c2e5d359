package cache

import "context"

// CanvasCache is the pub/sub backbone between server instances plus a
// short-lived cache of page documents and active-page pointers, so a room
// full of readers does not hammer the store on every join.
type CanvasCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	SetPageDocument(ctx context.Context, sessionId string, number int, doc []byte) error
	// GetPageDocument returns (nil, nil) on a cache miss.
	GetPageDocument(ctx context.Context, sessionId string, number int) ([]byte, error)
	SetActivePage(ctx context.Context, sessionId string, number int) error
	// GetActivePage returns -1 on a cache miss.
	GetActivePage(ctx context.Context, sessionId string) (int, error)
	InvalidateSession(ctx context.Context, sessionId string) error
}

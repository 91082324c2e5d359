package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/LeoTokuo/canvas-project-online/store"
)

type SnapshotSave struct {
	SessionId string
	Data      json.RawMessage
}

// SnapshotBatcher coalesces full-session snapshot saves so a client that
// autosaves repeatedly (or several clients saving the same session) produce
// one store write per flush interval. Later saves for the same session
// replace earlier ones; only the latest snapshot is worth persisting.
type SnapshotBatcher struct {
	SaveCh             chan SnapshotSave
	canvasStore        store.CanvasStore
	tickerMilliseconds int
}

func NewSnapshotBatcher(canvasStore store.CanvasStore, tickerMilliseconds int) *SnapshotBatcher {
	return &SnapshotBatcher{
		SaveCh:             make(chan SnapshotSave, 1024), // buffer to absorb bursts
		canvasStore:        canvasStore,
		tickerMilliseconds: tickerMilliseconds,
	}
}

func (b *SnapshotBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	pending := make(map[string]json.RawMessage)

	flush := func() {
		for sessionId, data := range pending {
			go func(id string, d json.RawMessage) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if _, err := b.canvasStore.UpdateSession(ctx, id, d); err != nil {
					log.Printf("Failed to persist snapshot for session %s: %v", id, err)
				}
			}(sessionId, data)
		}
		pending = make(map[string]json.RawMessage)
	}

	for {
		select {
		case save := <-b.SaveCh:
			if save.SessionId == "" {
				continue
			}
			pending[save.SessionId] = save.Data

			if len(pending) >= 100 {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/LeoTokuo/canvas-project-online/mq"
)

// AutosaveMessage is the body of a queued autosave job. Clients flushing
// state on unload cannot wait for a synchronous store write, so the API
// enqueues the snapshot and this consumer persists it.
type AutosaveMessage struct {
	SessionId string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

type MQConsumer struct {
	autosaveQueue   mq.MessageQueue
	snapshotBatcher *SnapshotBatcher
}

func NewMQConsumer(autosaveQueue mq.MessageQueue, snapshotBatcher *SnapshotBatcher) *MQConsumer {
	return &MQConsumer{
		autosaveQueue:   autosaveQueue,
		snapshotBatcher: snapshotBatcher,
	}
}

const visibilityTimeout = 30

func (mqConsumer MQConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := mqConsumer.autosaveQueue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("mqConsumer receive error: %v", err)
			continue
		}

		if msg == nil {
			continue
		}

		var autosaveMsg AutosaveMessage
		if err := json.Unmarshal([]byte(msg.Body), &autosaveMsg); err != nil {
			// Malformed job; delete it so it does not loop forever
			mqConsumer.autosaveQueue.Delete(context.Background(), msg)
			continue
		}

		mqConsumer.snapshotBatcher.SaveCh <- SnapshotSave{
			SessionId: autosaveMsg.SessionId,
			Data:      autosaveMsg.Data,
		}

		err = mqConsumer.autosaveQueue.Delete(context.Background(), msg)
		if err != nil {
			log.Printf("mqConsumer delete error: %v", err)
			continue
		}
	}
}

package mq

import "context"

// MessageQueue carries queued autosave jobs from the API to the persistence
// worker. Receive long-polls and returns nil when no message arrived.
type MessageQueue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
}

type Message struct {
	Id   string
	Body string
}

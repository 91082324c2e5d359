package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/LeoTokuo/canvas-project-online/cache"
	"github.com/LeoTokuo/canvas-project-online/models"
	"github.com/LeoTokuo/canvas-project-online/service"
)

type join struct {
	client    *Client
	sessionId string
	// Closed once the hub has processed the join. Callers that need the
	// room subscription to be live before continuing wait on it.
	done chan struct{}
}

// delivery is one room message fanned in from the pub/sub backbone, routed
// through the hub loop so room membership is only touched from one goroutine.
type delivery struct {
	sessionId string
	origin    string
	message   []byte
}

// fallbackBroadcast is the degraded path for deltas whose session id could
// not be resolved: all local connections except the sender. It can leak
// events across sessions and exists only because clients that never joined a
// room still expect their peers on the same instance to see something.
type fallbackBroadcast struct {
	origin  *Client
	message []byte
}

// Hub maintains the set of active clients and the room each belongs to, and
// fans room messages out to local members.
type Hub struct {
	canvasCache          cache.CanvasCache
	OpenCh               chan *Client
	CloseCh              chan *Client
	JoinCh               chan join
	DeliverCh            chan delivery
	BroadcastAllCh       chan fallbackBroadcast
	clients              map[*Client]struct{}
	roomToClients        map[string]map[*Client]struct{}
	roomSubscriberCancel map[string]context.CancelFunc
}

func NewHub(canvasCache cache.CanvasCache) *Hub {
	return &Hub{
		canvasCache:          canvasCache,
		OpenCh:               make(chan *Client, 256),
		CloseCh:              make(chan *Client, 256),
		JoinCh:               make(chan join, 1024),
		DeliverCh:            make(chan delivery, 1024),
		BroadcastAllCh:       make(chan fallbackBroadcast, 256),
		clients:              make(map[*Client]struct{}),
		roomToClients:        make(map[string]map[*Client]struct{}),
		roomSubscriberCancel: make(map[string]context.CancelFunc),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.OpenCh:
			h.clients[client] = struct{}{}

		case client := <-h.CloseCh:
			// Disconnection leaves the room implicitly
			h.leaveRoom(client)
			delete(h.clients, client)

		case j := <-h.JoinCh:
			// A connection belongs to at most one room; re-joining moves it
			if j.client.Room() == j.sessionId {
				j.signalDone()
				continue
			}
			h.leaveRoom(j.client)

			if h.roomToClients[j.sessionId] == nil {
				log.Printf("Room subscriber does not exist, creating for session: %s", j.sessionId)

				ctx, cancel := context.WithCancel(context.Background())
				sessionId := j.sessionId

				err := h.canvasCache.Subscribe(ctx, service.RoomChannel(sessionId), func(messageBytes []byte) {
					var envelope models.RoomEnvelope
					if err := json.Unmarshal(messageBytes, &envelope); err != nil {
						log.Printf("Failed to unmarshal room envelope: %v", err)
						return
					}

					// Re-wrap without the origin; clients only see type/data
					clientMsg, err := json.Marshal(message{Type: envelope.Type, Data: envelope.Data})
					if err != nil {
						return
					}

					h.DeliverCh <- delivery{
						sessionId: sessionId,
						origin:    envelope.Origin,
						message:   clientMsg,
					}
				})
				if err != nil {
					cancel()
					log.Printf("Failed to create room subscription for session %s: %v", sessionId, err)
					j.signalDone()
					continue
				}

				h.roomToClients[j.sessionId] = make(map[*Client]struct{})
				h.roomSubscriberCancel[j.sessionId] = cancel
			}
			h.roomToClients[j.sessionId][j.client] = struct{}{}
			j.client.setRoom(j.sessionId)
			j.signalDone()

		case d := <-h.DeliverCh:
			for client := range h.roomToClients[d.sessionId] {
				// Never echo a publication back to its publisher
				if d.origin != "" && client.connId == d.origin {
					continue
				}
				select {
				case client.Send <- d.message:
				default:
					// Best-effort fan-out: a slow subscriber must not block
					// delivery to the rest of the room
					log.Printf("Dropping room message for slow connection %s", client.connId)
				}
			}

		case b := <-h.BroadcastAllCh:
			log.Printf("Broadcasting roomless delta from connection %s to all clients", b.origin.connId)
			for client := range h.clients {
				if client == b.origin {
					continue
				}
				select {
				case client.Send <- b.message:
				default:
					log.Printf("Dropping broadcast for slow connection %s", client.connId)
				}
			}
		}
	}
}

func (j join) signalDone() {
	if j.done != nil {
		close(j.done)
	}
}

// leaveRoom removes the client from its room, cancelling the pub/sub
// subscription when the room empties.
func (h *Hub) leaveRoom(client *Client) {
	room := client.Room()
	if room == "" {
		return
	}

	delete(h.roomToClients[room], client)
	client.setRoom("")

	if len(h.roomToClients[room]) == 0 {
		if cancel, ok := h.roomSubscriberCancel[room]; ok {
			cancel()
			delete(h.roomSubscriberCancel, room)
		}
		delete(h.roomToClients, room)
	}
}

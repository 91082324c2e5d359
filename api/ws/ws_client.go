package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"github.com/LeoTokuo/canvas-project-online/models"
	"github.com/LeoTokuo/canvas-project-online/service"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer: the largest document the
	// service accepts plus headroom for the message envelope. A page_switch
	// that would pass validation must never be cut off at the socket.
	maxMessageSize = service.MaxDocumentBytes + 8*1024

	// Rate limiting: 30 messages per second with a burst of 60. Drag-resizing
	// an object emits a modified event per frame, so the ceiling is higher
	// than a click-driven protocol would need.
	messagesPerSecond = 30
	burstLimit        = 60
)

type MessageHandler func(client *Client, messageType int, messageBytes []byte)

func NewClient(hub *Hub, conn *websocket.Conn, account models.Account, handler MessageHandler) *Client {
	connId, _ := uuid.NewV4()
	return &Client{
		hub:     hub,
		conn:    conn,
		connId:  connId.String(),
		account: account,
		handler: handler,
		Send:    make(chan []byte, 128),
		limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), burstLimit),
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	connId  string
	account models.Account
	handler MessageHandler
	// room is the session id this connection joined. Written by the hub
	// loop, read from the read pump, hence the mutex.
	roomMu  sync.Mutex
	room    string
	Send    chan []byte // Buffered channel of outbound messages.
	limiter *rate.Limiter
}

func (c *Client) Room() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.room
}

func (c *Client) setRoom(room string) {
	c.roomMu.Lock()
	c.room = room
	c.roomMu.Unlock()
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.CloseCh <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		messageType, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS close error: %v", err)
			}
			break
		}

		if !c.limiter.Allow() {
			log.Printf("Closing connection %s: message rate limit exceeded", c.connId)
			break
		}

		c.handler(c, messageType, messageBytes)
	}
}

func (c *Client) WritePump(shutdownCtx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WS send error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-shutdownCtx.Done():
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Websocket service shutting down"),
			)
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

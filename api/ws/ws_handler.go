package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/LeoTokuo/canvas-project-online/models"
	"github.com/LeoTokuo/canvas-project-online/service"
)

type Handler struct {
	Service *service.Service
	Hub     *Hub
}

func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if requiredOrigin == "" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == requiredOrigin
		},
		Subprotocols: []string{"canvas-v1"},
	}
}

// ServeWS handles websocket requests from the peer.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	protocols := r.Header.Get("Sec-WebSocket-Protocol")
	protocolsSplit := strings.Split(protocols, ",")

	if len(protocolsSplit) != 2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := strings.TrimSpace(protocolsSplit[1])

	account, authErr := h.Service.AuthenticateToken(r.Context(), token)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unauthenticated"),
		)
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, account, h.HandleWsMessage)

	h.Hub.OpenCh <- client

	// Start pumps
	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

// Websocket message structs
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinRoomMessage struct {
	SessionId string `json:"sessionId"`
}

type responseMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	var msg message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		log.Printf("Invalid JSON: %v", err)
		return
	}

	var resp responseMessage

	switch msg.Type {
	case "joinRoom":
		var joinMsg joinRoomMessage
		if err := json.Unmarshal(msg.Data, &joinMsg); err != nil {
			log.Printf("Invalid joinRoom data: %v", err)
			return
		}
		resp = h.handleJoinRoom(client, joinMsg)

	case models.DeltaObjectAdded, models.DeltaObjectModified, models.DeltaObjectRemoved:
		var delta models.ObjectDelta
		if err := json.Unmarshal(msg.Data, &delta); err != nil {
			log.Printf("Invalid delta data: %v", err)
			return
		}
		h.handleDelta(client, msg.Type, msg.Data, delta)
		// Deltas are fire-and-forget; malformed ones are dropped silently so
		// the collaboration stream stays non-disruptive
		return

	case models.EventPageSwitch:
		var switchMsg models.PageSwitchEvent
		if err := json.Unmarshal(msg.Data, &switchMsg); err != nil {
			log.Printf("Invalid page_switch data: %v", err)
			return
		}
		resp = h.handlePageSwitch(client, switchMsg)

	default:
		log.Printf("Unknown message type: %v", msg.Type)
	}

	if resp.Type != "" {
		respBytes, err := json.Marshal(resp)
		if err != nil {
			log.Printf("Error marshaling response JSON: %v", err)
			return
		}
		client.Send <- respBytes
	}
}

// handleJoinRoom associates the connection with the session's room and
// replies with the active page and its document. The snapshot rides on every
// join, so a client that reconnects after missing deltas resynchronizes by
// reloading it.
func (h *Handler) handleJoinRoom(client *Client, joinMsg joinRoomMessage) responseMessage {
	resp := responseMessage{
		Type: "join_response",
	}

	if err := service.ValidateSessionID(joinMsg.SessionId); err != nil {
		log.Printf("Join rejected for session %s: %v", joinMsg.SessionId, err)
		resp.Data = map[string]any{"success": false, "sessionId": joinMsg.SessionId}
		return resp
	}

	// Join before reading the snapshot. Once the room subscription is live,
	// every delta missing from the snapshot is delivered to the connection,
	// so nothing published during the join can fall between the two.
	joined := make(chan struct{})
	h.Hub.JoinCh <- join{client: client, sessionId: joinMsg.SessionId, done: joined}
	<-joined

	page, doc, err := h.Service.CurrentPage(context.Background(), joinMsg.SessionId)
	if err != nil {
		log.Printf("Join failed for session %s: %v", joinMsg.SessionId, err)
		resp.Data = map[string]any{"success": false, "sessionId": joinMsg.SessionId}
		return resp
	}

	resp.Data = map[string]any{
		"success":    true,
		"sessionId":  joinMsg.SessionId,
		"page":       page,
		"canvasJson": doc,
	}
	return resp
}

func (h *Handler) handleDelta(client *Client, kind string, rawData json.RawMessage, delta models.ObjectDelta) {
	// Resolve the room: the payload's session id wins, then the joined room
	if delta.SessionId == "" {
		delta.SessionId = client.Room()
	}

	if delta.SessionId == "" {
		// Degraded mode: no resolvable session, deliver to every other local
		// connection. Logged loudly because it can leak events cross-session.
		log.Printf("Delta %s from connection %s has no resolvable session", kind, client.connId)
		fallbackBytes, err := json.Marshal(message{Type: kind, Data: rawData})
		if err != nil {
			return
		}
		h.Hub.BroadcastAllCh <- fallbackBroadcast{origin: client, message: fallbackBytes}
		return
	}

	if err := h.Service.RelayDelta(context.Background(), client.connId, kind, delta); err != nil {
		log.Printf("RelayDelta %s failed: %v", kind, err)
	}
}

func (h *Handler) handlePageSwitch(client *Client, switchMsg models.PageSwitchEvent) responseMessage {
	resp := responseMessage{
		Type: "page_switch_response",
	}

	sessionId := switchMsg.SessionId
	if sessionId == "" {
		sessionId = client.Room()
	}

	doc, err := h.Service.SwitchPage(
		context.Background(),
		client.account,
		sessionId,
		switchMsg.Page,
		switchMsg.CanvasJson,
	)

	if err != nil {
		log.Printf("SwitchPage failed: %v", err)
		resp.Data = map[string]any{
			"success":   false,
			"error":     err.Error(),
			"sessionId": sessionId,
			"page":      switchMsg.Page,
		}
		return resp
	}

	// The room broadcast (initiator included) carries the document too; the
	// direct response lets the initiator reload without waiting on pub/sub
	resp.Data = map[string]any{
		"success":    true,
		"sessionId":  sessionId,
		"page":       switchMsg.Page,
		"canvasJson": doc,
	}
	return resp
}

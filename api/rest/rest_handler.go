package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/LeoTokuo/canvas-project-online/models"
	"github.com/LeoTokuo/canvas-project-online/service"
	"github.com/LeoTokuo/canvas-project-online/store"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Provider and Code switch the request to an OAuth login
	Provider string `json:"provider"`
	Code     string `json:"code"`
}

type loginResponse struct {
	Success    bool   `json:"success"`
	Id         string `json:"id"`
	Name       string `json:"name"`
	Permission int    `json:"permission"`
	Token      string `json:"token"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var (
		account models.Account
		token   string
		err     error
	)
	if req.Provider != "" {
		account, token, err = h.Service.LoginOAuth(r.Context(), req.Provider, req.Code)
	} else {
		account, token, err = h.Service.Login(r.Context(), req.Username, req.Password)
	}

	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		log.Printf("Login failed: %v", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	resp := loginResponse{
		Success:    true,
		Id:         account.Id,
		Name:       account.Name,
		Permission: account.Permission,
		Token:      token,
	}
	h.sendResponse(w, resp)
}

type createSessionRequest struct {
	Data models.CanvasDocument `json:"data"`
}

type sessionResponse struct {
	Success    bool            `json:"success"`
	SessionId  string          `json:"sessionId"`
	ActivePage int             `json:"activePage"`
	Updated    int64           `json:"updated"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// HandleSessions serves POST /sessions (create).
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := h.Service.AuthenticateToken(r.Context(), h.getTokenFromAuthHeader(r)); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.Service.CreateSession(r.Context(), req.Data)
	if err != nil {
		log.Printf("Create session failed: %v", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, sessionResponse{
		Success:    true,
		SessionId:  session.Id,
		ActivePage: session.ActivePage,
		Updated:    session.Updated,
		Data:       session.Data,
	})
}

type updateSessionRequest struct {
	Data json.RawMessage `json:"data"`
}

// HandleSession serves GET and PUT /sessions/{id}, and POST
// /sessions/{id}/autosave for queued unload-time saves.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Service.AuthenticateToken(r.Context(), h.getTokenFromAuthHeader(r)); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	sessionId, tail, _ := strings.Cut(rest, "/")
	if sessionId == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}

	if tail == "autosave" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleAutosave(w, r, sessionId)
		return
	}
	if tail != "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGetSession(w, r, sessionId)

	case http.MethodPut:
		h.handleUpdateSession(w, r, sessionId)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request, sessionId string) {
	session, err := h.Service.GetSession(r.Context(), sessionId)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		log.Printf("Get session failed: %v", err)
		http.Error(w, "failed to fetch session", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, sessionResponse{
		Success:    true,
		SessionId:  session.Id,
		ActivePage: session.ActivePage,
		Updated:    session.Updated,
		Data:       session.Data,
	})
}

func (h *Handler) handleUpdateSession(w http.ResponseWriter, r *http.Request, sessionId string) {
	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.Service.UpdateSession(r.Context(), sessionId, req.Data)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		log.Printf("Update session failed: %v", err)
		http.Error(w, "failed to update session", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, sessionResponse{
		Success:    true,
		SessionId:  session.Id,
		ActivePage: session.ActivePage,
		Updated:    session.Updated,
		Data:       session.Data,
	})
}

type autosaveResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) handleAutosave(w http.ResponseWriter, r *http.Request, sessionId string) {
	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.QueueAutosave(r.Context(), sessionId, req.Data); err != nil {
		log.Printf("Queue autosave failed: %v", err)
		http.Error(w, "failed to queue autosave", http.StatusInternalServerError)
		return
	}

	// Accepted, not persisted: the autosave worker writes it out
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(autosaveResponse{Success: true})
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}

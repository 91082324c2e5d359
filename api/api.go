package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/LeoTokuo/canvas-project-online/api/rest"
	"github.com/LeoTokuo/canvas-project-online/api/ws"
	"github.com/LeoTokuo/canvas-project-online/cache"
	"github.com/LeoTokuo/canvas-project-online/mq"
	"github.com/LeoTokuo/canvas-project-online/service"
	"github.com/LeoTokuo/canvas-project-online/store"
	"github.com/LeoTokuo/canvas-project-online/worker"
	"golang.org/x/oauth2"
)

type CanvasAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	wsUpgrader  websocket.Upgrader
	shutdownCtx context.Context
}

func NewCanvasAPI(
	canvasStore store.CanvasStore,
	autosaveQueue mq.MessageQueue,
	canvasCache cache.CanvasCache,
	oauthConfigs map[string]*oauth2.Config,
	jwtSecret []byte,
	shutdownCtx context.Context,
) (*CanvasAPI, error) {
	wsHub := ws.NewHub(canvasCache)
	go wsHub.Run()

	snapshotBatcher := worker.NewSnapshotBatcher(canvasStore, 5000)
	go snapshotBatcher.Run(shutdownCtx)

	mqConsumer := worker.NewMQConsumer(autosaveQueue, snapshotBatcher)
	go mqConsumer.Run(shutdownCtx)

	svc, err := service.NewService(
		canvasStore,
		canvasCache,
		autosaveQueue,
		snapshotBatcher,
		oauthConfigs,
		jwtSecret,
	)
	if err != nil {
		log.Printf("Failed to create service: %v", err)
		return &CanvasAPI{}, err
	}

	restHandler := rest.NewHandler(svc)
	wsHandler := ws.NewHandler(svc, wsHub)

	return &CanvasAPI{
		restHandler: restHandler,
		wsHandler:   wsHandler,
		shutdownCtx: shutdownCtx,
	}, nil
}

func (canvasAPI *CanvasAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/login", canvasAPI.restHandler.HandleLogin)
	mux.HandleFunc("/sessions", canvasAPI.restHandler.HandleSessions)
	mux.HandleFunc("/sessions/", canvasAPI.restHandler.HandleSession)

	wsUpgrader := canvasAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		canvasAPI.wsHandler.ServeWS(wsUpgrader, w, r, canvasAPI.shutdownCtx)
	})
}

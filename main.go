package main

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/LeoTokuo/canvas-project-online/api"
	"github.com/LeoTokuo/canvas-project-online/cache/redis"
	"github.com/LeoTokuo/canvas-project-online/mq/sqsmq"
	"github.com/LeoTokuo/canvas-project-online/store/dynamo"
	"golang.org/x/oauth2"
)

const (
	DynamoDBTable    = "CanvasSessions"
	SQSAutosaveQueue = "SessionAutosaveQueue"
)

func main() {
	ctx := context.Background()
	devMode := os.Getenv("DEV_MODE") == "true"

	canvasStore, err := dynamo.NewDynamoCanvasStore(ctx, devMode, os.Getenv("DYNAMODB_ENDPOINT"), DynamoDBTable)
	if err != nil {
		log.Fatalf("Failed to create dynamodb store: %v", err)
	}

	autosaveQueue, err := sqsmq.NewSQSMessageQueue(ctx, devMode, os.Getenv("SQS_ENDPOINT"), SQSAutosaveQueue)
	if err != nil {
		log.Fatalf("Failed to create SQS MQ: %v", err)
	}

	canvasCache, err := redis.NewRedisCanvasCache(ctx, devMode, os.Getenv("REDIS_ENDPOINT"))
	if err != nil {
		log.Fatalf("Failed to create redis cache: %v", err)
	}

	appOrigin := os.Getenv("APP_ORIGIN")

	var oauthConfigs = map[string]*oauth2.Config{
		"github": {
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			RedirectURL:  appOrigin + "/login",
		},
		"google": {
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  appOrigin + "/login",
		},
	}

	jwtSecret, err := base64.StdEncoding.DecodeString(os.Getenv("JWT_SECRET"))
	if err != nil {
		log.Fatalf("Failed to decode base64 jwtSecret: %v", err)
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	canvasAPI, err := api.NewCanvasAPI(canvasStore, autosaveQueue, canvasCache, oauthConfigs, jwtSecret, shutdownCtx)
	if err != nil {
		log.Fatalf("Failed to create canvas api: %v", err)
	}

	mux := http.NewServeMux()
	canvasAPI.RegisterRoutes(mux, appOrigin)

	hostPort := "8080"
	if p := os.Getenv("HOST_PORT"); p != "" {
		hostPort = p
	}
	log.Printf("Starting server on host port: %s\n", hostPort)
	log.Fatal(http.ListenAndServe(":"+hostPort, mux))
}

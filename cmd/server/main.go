package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"tanks/internal/api"
	"tanks/internal/broadcast"
	"tanks/internal/config"
	"tanks/internal/eventlog"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found, using environment variables only")
		}
	} else {
		log.Println("loaded environment from ../.env")
	}

	log.Println("================================")
	log.Println(" TANKS - PROGRAMMABLE TANK ENGINE")
	log.Println("================================")

	appConfig := config.Load()

	log.Printf("sim: %dx%d arena, %d Hz tick, %.0fs match limit",
		int(appConfig.Sim.ArenaWidth), int(appConfig.Sim.ArenaHeight),
		appConfig.Sim.TickRate, appConfig.Sim.MatchTimeLimit)
	log.Printf("limits: %d concurrent matches, %d players/match, %d byte max submission",
		appConfig.Limits.MaxConcurrentMatches, appConfig.Limits.MaxPlayersPerMatch, appConfig.Limits.MaxSubmissionBytes)

	eventLogPath := appConfig.Server.EventLogPath
	if eventLogPath == "" {
		eventLogPath = "events.jsonl"
	}
	evLog := eventlog.New()
	if err := evLog.Start(eventLogPath); err != nil {
		log.Printf("event log disabled: %v", err)
		evLog = nil
	} else {
		log.Printf("event log: %s", eventLogPath)
	}

	debugCfg := api.DefaultObservabilityConfig()
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Printf("debug server disabled: %v", err)
		}
	}

	hub := broadcast.New(api.IsAllowedOrigin, api.NewWebSocketRateLimiter(5), broadcast.Metrics{
		OnConnectionsChanged: api.UpdateWSConnections,
		OnMessageSent:        api.IncrementWSMessages,
		OnRejected:           api.RecordConnectionRejected,
	})

	manager := api.NewMatchManager(api.MatchManagerConfig{
		Constants:  appConfig.Sim,
		MaxMatches: appConfig.Limits.MaxConcurrentMatches,
		MaxPlayers: appConfig.Limits.MaxPlayersPerMatch,
		MaxSource:  appConfig.Limits.MaxSubmissionBytes,
		Watchdog:   appConfig.Runtime.Watchdog,
		Hub:        hub,
		Log:        evLog,
	})

	server := api.NewServer(manager, hub, appConfig.Limits)

	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		log.Printf("API server on http://localhost%s", addr)
		if err := server.Start(addr); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("server ready, press Ctrl+C to stop")
	<-quit

	log.Println("shutting down...")
	server.Stop()
	if evLog != nil {
		evLog.Stop()
	}
	log.Println("goodbye")
}

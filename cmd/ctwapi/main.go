package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"ctwapi/config"
	"ctwapi/handlers"
	"ctwapi/internal/database"
	imagessvc "ctwapi/services/images"
	leaderboardsvc "ctwapi/services/leaderboard"
	"ctwapi/services/scores"
	statssvc "ctwapi/services/stats"
	"ctwapi/utils"
)

func main() {
	configPath := flag.String("config", "data/settings.json", "path to the settings file")
	flag.Parse()

	manager := config.NewManager(*configPath)
	settings, err := manager.Load()
	if err != nil {
		log.Fatalf("[main] load settings: %v", err)
	}

	if settings.Log.Path != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   settings.Log.Path,
			MaxSize:    settings.Log.MaxSizeMB,
			MaxBackups: settings.Log.MaxBackups,
		}))
	}

	// First start on a fresh data dir gets a generated signing secret,
	// persisted so tokens survive restarts.
	if settings.Auth.Secret == "" {
		secret, err := utils.GenerateSecret()
		if err != nil {
			log.Fatalf("[main] generate auth secret: %v", err)
		}
		settings.Auth.Secret = secret
		if err := manager.Save(settings); err != nil {
			log.Fatalf("[main] persist auth secret: %v", err)
		}
		log.Printf("[main] generated new auth secret, saved to %s", *configPath)
	}

	db, err := database.NewDB(database.Config{DatabasePath: settings.Database.Path})
	if err != nil {
		log.Fatalf("[main] open database: %v", err)
	}
	defer db.Close()

	if err := os.MkdirAll(settings.Images.RootPath, 0755); err != nil {
		log.Fatalf("[main] create images directory: %v", err)
	}
	imageFs := afero.NewBasePathFs(afero.NewOsFs(), settings.Images.RootPath)

	scoreClient := scores.NewClient(settings.Scores.BaseURL,
		time.Duration(settings.Scores.TimeoutSeconds)*time.Second)

	boardService := leaderboardsvc.NewService(scoreClient, db.Profiles, settings.Leaderboard.SlugPrefix)
	statsService := statssvc.NewService(db.Stats)
	imageService := imagessvc.NewService(db.Images, imageFs)

	router := utils.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.Use(handlers.RequireAuth(settings.Auth.Secret))

	handlers.NewLeaderboardHandler(boardService).Register(api)
	handlers.NewStatsHandler(statsService).Register(api)
	handlers.NewImagesHandler(imageService, statsService, boardService).Register(api)

	server := &http.Server{
		Addr:              settings.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", settings.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}

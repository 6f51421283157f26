package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/scenekit/internal/api"
	"github.com/rpattn/scenekit/internal/config"
	"github.com/rpattn/scenekit/internal/db"
	"github.com/rpattn/scenekit/internal/export"
	"github.com/rpattn/scenekit/internal/hub"
	"github.com/rpattn/scenekit/internal/middleware"
	"github.com/rpattn/scenekit/internal/mutation"
	"github.com/rpattn/scenekit/internal/repository"

	"github.com/rs/cors"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := conn.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	entityRepo := repository.NewEntityRepository(conn.Pool)
	placementRepo := repository.NewPlacementRepository(conn.Pool)
	embeddedRepo := repository.NewEmbeddedRepository(conn)
	annotationRepo := repository.NewAnnotationRepository(conn.Pool)
	sceneRepo := repository.NewSceneRepository(conn.Pool)
	compendiumRepo := repository.NewCompendiumRepository(conn.Pool)

	// Create engines
	engine := mutation.NewEngine(entityRepo, placementRepo, embeddedRepo, annotationRepo)
	sessions := hub.NewHub()

	apiHandler := api.NewHTTPHandler(
		entityRepo, compendiumRepo, sceneRepo, placementRepo,
		engine, sessions, cfg.Scenes,
	)
	exportHandler := export.NewHTTPHandler(
		export.NewService(sceneRepo, placementRepo, entityRepo, engine),
	)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	wrap := func(h http.Handler) http.Handler {
		return corsHandler.Handler(middleware.LoggingMiddleware(
			middleware.DataLoaderMiddleware(entityRepo)(h),
		))
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", wrap(apiHandler))
	mux.Handle("/api/export", wrap(exportHandler))
	mux.HandleFunc("/ws", sessions.HandleWS)

	// Create HTTP server. Interactive selection holds requests open
	// until the operator clicks, so no write timeout.
	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting scenekit server on %s", cfg.Server.Addr)
		log.Printf("API endpoints available under http://localhost%s/api", cfg.Server.Addr)
		log.Printf("WebSocket endpoint available at ws://localhost%s/ws", cfg.Server.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

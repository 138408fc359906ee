package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/serroba/docs-undo/internal/acl"
	"github.com/serroba/docs-undo/internal/api"
	"github.com/serroba/docs-undo/internal/config"
	"github.com/serroba/docs-undo/internal/session"
	"github.com/serroba/docs-undo/internal/storage"
	"github.com/serroba/docs-undo/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	// Initialize stores
	store, closeStore, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeStore()

	permStore := acl.NewMemoryStore()

	// Initialize WebSocket hub
	hub := ws.NewHub()

	// Initialize session manager
	manager := session.NewManager(session.ManagerConfig{
		Store:          store,
		PermStore:      permStore,
		Hub:            hub,
		SnapshotPolicy: storage.NewSnapshotPolicy(cfg.SnapshotEvery),
		HistorySize:    cfg.HistorySize,
		Debounce:       cfg.Debounce,
		ReplayHold:     cfg.ReplayHold,
	})

	// Initialize API server
	server := api.NewServer(api.ServerConfig{
		Manager:   manager,
		Store:     store,
		PermStore: permStore,
		Hub:       hub,
	})

	// Configure HTTP server with timeouts
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Printf("Starting server on %s", cfg.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Printf("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}

	// Commit pending edits and save every open document.
	if err := manager.CloseAll(); err != nil {
		log.Printf("Failed to save open documents: %v", err)
	}

	return nil
}

// openStore returns a SQLite store when path is set and an in-memory one
// otherwise.
func openStore(path string) (storage.Store, func(), error) {
	if path == "" {
		log.Printf("Using in-memory document store")

		return storage.NewMemoryStore(), func() {}, nil
	}

	store, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}

	log.Printf("Using SQLite document store at %s", path)

	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("Failed to close store: %v", err)
		}
	}, nil
}

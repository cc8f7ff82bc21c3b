package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clanstore/internal/cache"
	"clanstore/internal/config"
	"clanstore/internal/handler"
	"clanstore/internal/hub"
	"clanstore/internal/loader"
	"clanstore/internal/repository/sqlstore"
	"clanstore/internal/service"
	"clanstore/internal/watcher"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Config file path (default: search CLANSTORE_CONFIG, ./clanstore.yaml, XDG, /etc)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting clanstore server...")

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if path != "" {
		log.Printf("Config loaded: %s", path)
	}
	log.Println(cfg.Summary())

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize store
	clans, claims, members, perms := cfg.CacheSizes()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
		Cache:  cache.Capacities{Clans: clans, Claims: claims, Members: members, Perms: perms},
		Retry: sqlstore.RetryPolicy{
			MaxAttempts: cfg.Reconnect.MaxAttempts,
			Backoff:     cfg.Reconnect.Backoff.Duration(),
		},
		Logger:     log.Default(),
		Registerer: registry,
	})
	cancel()
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()
	log.Printf("Database opened: %s", cfg.Database.Driver)

	// Initialize event bus
	eventBus := service.NewEventBus()

	// Initialize SSE hub
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	sseHub := hub.New()
	go sseHub.Run(hubCtx)

	// Connect event bus to SSE hub
	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go func() {
		for event := range eventChan {
			sseHub.Broadcast(string(event.Type), event.Payload)
		}
	}()

	// Initialize services and handlers
	clanSvc := service.NewClanService(store, eventBus)
	clanHandler := handler.NewClanHandler(clanSvc)

	// Load the seed snapshot, reloading on change when asked to
	if cfg.Seed.Path != "" {
		if _, err := loader.Seed(context.Background(), cfg.Seed.Path, clanSvc); err != nil {
			log.Printf("Warning: Failed to load seed: %v", err)
		}
		if cfg.Seed.Watch {
			seedWatcher := watcher.New(cfg.Seed.Path, func() {
				if _, err := loader.Seed(hubCtx, cfg.Seed.Path, clanSvc); err != nil {
					log.Printf("Failed to reload seed: %v", err)
				}
			})
			go func() {
				if err := seedWatcher.Watch(hubCtx); err != nil && err != context.Canceled {
					log.Printf("Seed watcher stopped: %v", err)
				}
			}()
		}
	}

	// Setup routes
	mux := http.NewServeMux()
	clanHandler.Register(mux)
	mux.Handle("GET /events", sseHub)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	// Apply middleware
	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	// Create server
	server := &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     finalHandler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Close event streams and the seed watcher so Shutdown doesn't wait on them
	hubCancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// Package main runs the in-memory reference collection backend, so the
// tracker can be used and tested without the production service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/store"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/config"
)

// Demo account created when seed_demo_user is set.
const (
	demoEmail    = "demo@example.com"
	demoPassword = "demo-password"
)

var (
	configPath = flag.String("config", "", "Config file (default: ~/.tcg-tracker/config.toml)")
	port       = flag.Int("port", 0, "API server port (overrides config)")
	accessLog  = flag.Bool("access-log", false, "Log every request")
	debug      = flag.Bool("debug-mode", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		log.Printf("Warning: %v", err)
	}

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			log.Fatalf("Failed to resolve config path: %v", err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level := slog.LevelInfo
	if *debug || cfg.App.DebugMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	fmt.Println("TCG Collection Tracker - Reference API Server")
	fmt.Println("=============================================")
	fmt.Println()

	st := store.New(store.DefaultCatalog())
	if cfg.Server.SeedDemoUser {
		if _, err := st.Register(demoEmail, demoPassword); err != nil {
			log.Fatalf("Failed to create demo user: %v", err)
		}
		fmt.Printf("Demo account: %s / %s\n", demoEmail, demoPassword)
	}

	apiConfig := api.DefaultConfig()
	apiConfig.Port = cfg.Server.Port
	apiConfig.AccessLog = *accessLog
	apiConfig.SessionTTL = cfg.GetSessionTTL()
	if len(cfg.Server.AllowedOrigins) > 0 {
		apiConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	}
	server := api.NewServer(apiConfig, st, logger)

	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start API server: %v", err)
	}

	fmt.Println()
	fmt.Printf("API server running at http://localhost:%d/api\n", server.Port())
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println()
	fmt.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	fmt.Println("API server stopped.")
}

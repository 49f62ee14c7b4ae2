package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/guiyumin/mediadrop/internal/core/config"
	"github.com/guiyumin/mediadrop/internal/core/logger"
	"github.com/guiyumin/mediadrop/internal/core/version"
	"github.com/guiyumin/mediadrop/internal/server"
)

func main() {
	// Command-line flags
	port := flag.Int("port", 0, "HTTP listen port (default: 8000)")
	output := flag.String("output", "", "storage root for task directories")
	journal := flag.Bool("journal", false, "persist the file registry across restarts")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mediadrop-server %s\n", version.Version)
		return
	}

	log := logger.Get("Server")

	// Load configuration (.env, config file, environment)
	cfg := config.LoadOrDefault()
	logger.SetMinLoggingLevel(logger.ParseLevel(cfg.Log.Level))

	// Resolve port (flag > config > default)
	if *port > 0 {
		cfg.Server.Port = *port
	}

	// Resolve storage root (flag > config > default)
	if *output != "" {
		root := *output
		if len(root) >= 2 && root[:2] == "~/" {
			home, _ := os.UserHomeDir()
			root = filepath.Join(home, root[2:])
		}
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		cfg.Storage.Root = root
	}
	if *journal {
		cfg.Storage.Journal = true
	}

	deps, err := server.Build(cfg)
	if err != nil {
		log.Emit(logger.FATAL, "Startup failed: %v", err)
		os.Exit(1)
	}
	srv := server.New(cfg, deps)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Emit(logger.INFO, "Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	if err := srv.Start(); err != nil {
		log.Emit(logger.FATAL, "Server error: %v", err)
		os.Exit(1)
	}
}

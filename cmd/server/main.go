package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/panelsight/backend/internal/api"
	"github.com/panelsight/backend/internal/capability"
	"github.com/panelsight/backend/internal/config"
	"github.com/panelsight/backend/internal/inspection"
	"github.com/panelsight/backend/internal/linking"
	"github.com/panelsight/backend/internal/session"
)

func main() {
	log.Println("🔥 Starting Panel Inspection Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	configPath := os.Getenv("PANELSIGHT_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	// Capability backends. The barcode decoder is the pure-Go ZXing port;
	// compare methods run on the histogram embedding until a model plugin is
	// wired in; OCR stays unavailable without an engine.
	caps := &capability.Set{
		Barcode:        capability.NewZXingDecoder(),
		Extractors:     capability.DefaultExtractors(),
		BarcodeTimeout: cfg.BarcodeTimeout(),
	}

	var linker linking.Linker = linking.NoopLinker{}
	if cfg.Linking.URL != "" {
		linker = linking.NewClient(cfg.Linking.URL, cfg.LinkingTimeout())
	}

	sessions := session.NewManager(cfg.Paths.SharedRoot, cfg.SessionIdleExpiry())
	go sessions.RunSweeper(context.Background(), cfg.SweepInterval())

	coordinator := inspection.NewCoordinator(cfg, sessions, caps, linker)

	server := api.NewAPIServer(sessions, coordinator)
	if err := server.Start(cfg.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"trustline/internal/app"
	"trustline/internal/platform/config"
	"trustline/internal/platform/httpserver"
	"trustline/internal/platform/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRUSTLINE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// A local .env is optional.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	log.Info("starting trustline",
		"addr", cfg.HTTP.Addr,
		"env", cfg.Env,
		"default_profile", cfg.Verification.DefaultProfile,
	)
	if err := httpserver.Run(ctx, httpserver.New(cfg.HTTP, a.Handler), cfg.HTTP, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

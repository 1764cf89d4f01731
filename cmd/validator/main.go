package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/validator"
	"github.com/yashkhare05/Uptime/internal/version"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		os.Exit(1)
	}
	if cfg.ShowVersion {
		fmt.Println("uptime validator", version.String())
		return
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: cfg.PrettyLog})
	defer func() { _ = log.Sync() }()

	kp, err := validator.LoadOrCreateKeypair(cfg.KeypairFile, cfg.Generate, log)
	if err != nil {
		log.Fatal("failed to load keypair", logger.String("file", cfg.KeypairFile), logger.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := validator.New(validator.Config{
		HubURL:       cfg.HubURL,
		IP:           cfg.IP,
		ProbeTimeout: cfg.ProbeTimeout,
		ReconnectMax: cfg.ReconnectMax,
	}, kp, log)

	log.Info("🚀 starting validator",
		logger.String("hub", cfg.HubURL),
		logger.String("public_key", kp.PublicKey()),
		logger.String("version", version.Version))
	if err := client.Run(ctx); err != nil {
		log.Fatal("validator stopped with error", logger.Error(err))
	}
	log.Info("✅ validator stopped cleanly")
}

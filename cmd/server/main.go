package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "busboard/internal/adapters/http"
	"busboard/internal/adapters/imagestore"
	"busboard/internal/adapters/notify"
	"busboard/internal/adapters/ocr"
	pg "busboard/internal/adapters/postgres"
	"busboard/internal/config"
	"busboard/internal/services/contributions"
	"busboard/internal/services/duplicate"
	"busboard/internal/services/moderation"
	"busboard/internal/services/publish"
	"busboard/internal/services/quality"
	"busboard/internal/services/routetext"
	"busboard/internal/workers/processor"
)

func main() {
	cfg, err := config.Load()
	logger := newLogger(cfg.Env)
	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("config", "warning", err)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		logger.Error("loading validation rules failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	images, err := imagestore.NewFS(cfg.ImageDir)
	if err != nil {
		logger.Error("image store init failed", "error", err)
		os.Exit(1)
	}

	notifier := notify.NewLog(logger)
	publisher := publish.New(db)
	contribSvc := contributions.New(db, images)
	modSvc := moderation.New(db, db, publisher, notifier, logger)

	runner := processor.New(processor.Config{
		Contribs:   db,
		Quality:    quality.New(rules),
		Dups:       duplicate.New(db, db, 0),
		Parser:     routetext.New(),
		Publisher:  publisher,
		OCR:        ocr.Select(cfg.OCRServiceURL, logger),
		Images:     images,
		Notifier:   notifier,
		Logger:     logger,
		OCRTimeout: cfg.OCRTimeout,
	})
	go runner.Run(ctx, cfg.ProcessInterval)

	srv := httpadapter.New(contribSvc, modSvc, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	case err := <-errCh:
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

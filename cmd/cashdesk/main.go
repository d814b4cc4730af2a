package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cashdesk/internal/amqp"
	"cashdesk/internal/cashapi"
	"cashdesk/internal/cashapi/memory"
	"cashdesk/internal/cashapi/rest"
	"cashdesk/internal/config"
	apphttp "cashdesk/internal/http"
	"cashdesk/internal/ledger"
	"cashdesk/internal/log"
	"cashdesk/internal/storage"
	"cashdesk/internal/view"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentApp})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var (
		rowSvc    cashapi.RowService
		paySvc    cashapi.PayoutService
		creditReg cashapi.CreditRegistrar
	)

	switch cfg.DataBackend {
	case "rest":
		cli, err := rest.New(rest.Session{BaseURL: cfg.APIBaseURL, Token: cfg.APIToken})
		if err != nil {
			logger.Error("Failed to initialize cash service client", "error", err, "backend", cfg.DataBackend)
			os.Exit(1)
		}
		rowSvc, paySvc, creditReg = cli, cli, cli
		logger.Info("Initialized rest backend", "backend", cfg.DataBackend, "base_url", cfg.APIBaseURL)
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		rowSvc, paySvc, creditReg = repo, repo, repo
		logger.Info("Initialized sqlite backend", "backend", cfg.DataBackend, "path", cfg.SQLiteDBPath)
	default:
		svc := memory.New()
		rowSvc, paySvc, creditReg = svc, svc, svc
		logger.Info("Initialized memory backend", "backend", cfg.DataBackend)
	}

	// The audit stream is optional; without AMQP mutations simply go unlogged.
	var events ledger.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		events = amqpClient
		logger.Info("Audit event stream enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Audit event stream disabled - no AMQP_URL provided")
	}

	store := ledger.NewStore(rowSvc, events)
	payout := ledger.NewPayout(paySvc, events)
	render := view.Renderer{Currency: cfg.Currency}

	srv := apphttp.NewServer(":"+cfg.Port, store, payout, creditReg, render, logger)

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting cashdesk server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

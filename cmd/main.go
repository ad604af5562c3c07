package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paysync/internal/bootstrap"
	"paysync/internal/config"
	cronpkg "paysync/internal/cron"
	"paysync/internal/fulfillment"
	"paysync/internal/middleware"
	"paysync/internal/notify"
	"paysync/internal/payment"
	"paysync/internal/repository"
	"paysync/internal/router"
)

var Version = "dev"

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rootCmd := &cobra.Command{
		Use:           "paysync",
		Short:         "Razorpay payment reconciliation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(logger))
	rootCmd.AddCommand(bootstrapCmd(logger))

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func bootstrapCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap-db",
		Short: "Create or migrate the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := config.NewDatabase(&cfg.Database, logger)
			if err != nil {
				return err
			}
			if err := bootstrap.Migrate(db); err != nil {
				return err
			}
			logger.Info("Database bootstrap completed")
			return nil
		},
	}
}

func serveCmd(logger *zap.Logger) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and housekeeping jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(logger, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "run schema migration before serving")
	return cmd
}

func runServe(logger *zap.Logger, migrate bool) error {
	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Gateway.Validate(); err != nil {
		return err
	}
	if cfg.API.Key == "" {
		logger.Warn("API_KEY is not set, admin endpoints will reject every request")
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, logger)
	if err != nil {
		return err
	}
	if migrate {
		if err := bootstrap.Migrate(db); err != nil {
			return fmt.Errorf("failed to bootstrap database schema: %w", err)
		}
	}
	store := repository.NewStore(db)

	// --- Gateway ---
	gateway := payment.NewRazorpayGateway(payment.RazorpayConfig{
		KeyID:         cfg.Gateway.KeyID,
		KeySecret:     cfg.Gateway.KeySecret,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		BaseURL:       cfg.Gateway.BaseURL,
		Timeout:       cfg.Gateway.Timeout,
	})

	// --- Notifications ---
	notifier := notify.Multi{notify.NewLog(logger)}
	var closers []func() error
	if cfg.Kafka.Enabled() {
		writer := notify.NewKafkaWriter(cfg.Kafka.Brokers)
		closers = append(closers, writer.Close)
		notifier = append(notifier, notify.NewKafka(writer, cfg.Kafka.Topic))
		logger.Info("Kafka notifications enabled", zap.String("topic", cfg.Kafka.Topic))
	}
	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.AdminChatID, []payment.NotificationType{
			payment.NotifyNeedsReconciliation,
			payment.NotifyRefundIssued,
		}, logger)
		if err != nil {
			logger.Warn("Telegram notifications disabled", zap.Error(err))
		} else {
			notifier = append(notifier, tg)
		}
	}

	// --- Payment services ---
	finalizer := fulfillment.NewFinalizer(logger)
	affiliates := fulfillment.NewAffiliateLedger(logger)
	svc := router.Services{
		Store:    store,
		Binder:   payment.NewBinder(store, gateway, logger),
		Verifier: payment.NewVerifier(store, gateway, finalizer, affiliates, notifier, logger),
		Pipeline: payment.NewWebhookPipeline(store, gateway,
			payment.NewEventHandlers(finalizer, affiliates, logger),
			notifier, cfg.Idempotency.PaymentTTL, logger),
		Refunds: payment.NewRefundOrchestrator(store, gateway, notifier, logger),
	}

	// --- Webhook Deduper (Redis with in-memory fallback) ---
	deduper, dedupeErr := middleware.NewEventDeduper(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, cfg.Idempotency.DedupTTL)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for webhook dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, svc, router.Options{
		APIKey:     cfg.API.Key,
		CORSOrigin: cfg.Server.CORSOrigin,
		Deduper:    deduper,
	}, logger)

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(store, cronpkg.Schedule{
		MarkerPurge:       cfg.Cron.MarkerPurge,
		ReservationExpiry: cfg.Cron.ReservationExpiry,
	}, logger)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start cron scheduler: %w", err)
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting paysync server", zap.String("addr", addr), zap.String("gateway", gateway.Name()))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("Server failed", zap.Error(err))
	}

	logger.Info("Shutting down...")

	// Stop cron
	<-scheduler.Stop().Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("Failed to close notifier", zap.Error(err))
		}
	}

	logger.Info("Server exited")
	return nil
}

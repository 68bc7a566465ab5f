// Command notifier runs the automated notification engine.
//
// Usage:
//
//	notifier serve
//	notifier tick price
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"notification-engine/config"
	"notification-engine/internal/api"
	"notification-engine/internal/broker"
	"notification-engine/internal/monitor"
	"notification-engine/internal/util"
	"notification-engine/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	root := &cobra.Command{
		Use:           "notifier",
		Short:         "Automated notification engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(tickCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run all monitors and the HTTP surface until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(config.Load())
		},
	}
}

func tickCmd() *cobra.Command {
	names := []string{monitor.NameCart, monitor.NamePrice, monitor.NameOrders, monitor.NameInventory, monitor.NameEngagement}
	return &cobra.Command{
		Use:       "tick <monitor>",
		Short:     "Run a single tick of one monitor and print the result",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tickOnce(cmd.Context(), config.Load(), args[0])
		},
	}
}

func serve(cfg *config.Config) error {
	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting notification engine", zap.String("env", cfg.Server.Env))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(util.TracerOptions{
			Endpoint:    cfg.Observ.JaegerEndpoint,
			Environment: cfg.Server.Env,
			StoreDriver: cfg.Store.Driver,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	a.registry.Initialize(ctx)

	var lifecycleWorker *worker.LifecycleWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicLifecycle, cfg.Kafka.ConsumerGroup)
		lifecycleWorker = worker.NewLifecycleWorker(consumer, a.ledger, a.bus, logger)
		go func() {
			if err := lifecycleWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Lifecycle worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(a.registry, a.bus, a.session, a.ready, logger)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down notification engine")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	a.registry.Cleanup()
	if err := a.registry.Wait(shutdownCtx); err != nil {
		logger.Warn("Monitor ticks still running at shutdown", zap.Error(err))
	}

	if lifecycleWorker != nil {
		if err := lifecycleWorker.Stop(); err != nil {
			logger.Warn("Error stopping lifecycle worker", zap.Error(err))
		}
	}

	logger.Info("Notification engine exited")
	return nil
}

func tickOnce(ctx context.Context, cfg *config.Config, name string) error {
	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	a, err := newApp(ctx, cfg, util.GetLogger())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.registry.RunOnce(ctx, name)
	if err != nil {
		return err
	}

	fmt.Printf("monitor=%s outcome=%s notified=%d", res.Monitor, res.Outcome, res.Notified)
	if res.Reason != "" {
		fmt.Printf(" reason=%q", res.Reason)
	}
	if res.Err != nil {
		fmt.Printf(" error=%q", res.Err.Error())
	}
	fmt.Println()

	if res.Outcome == monitor.OutcomeFailed {
		return fmt.Errorf("%s tick failed", res.Monitor)
	}
	return nil
}

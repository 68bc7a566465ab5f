package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"notification-engine/config"
	"notification-engine/internal/backend"
	"notification-engine/internal/broker"
	"notification-engine/internal/engine"
	"notification-engine/internal/kvstore"
	"notification-engine/internal/lifecycle"
	"notification-engine/internal/monitor"
	"notification-engine/internal/notify"
	"notification-engine/internal/redisclient"
	"notification-engine/internal/snapshot"
	"notification-engine/internal/store"
	"notification-engine/internal/worker"
)

// app holds the wired engine and everything that must be closed with it
type app struct {
	kv       kvstore.Store
	ledger   worker.EventLedger
	recorder notify.Recorder
	ready    func(ctx context.Context) error

	bus      *lifecycle.Bus
	session  *snapshot.Session
	registry *engine.Registry

	closers []func() error
	logger  *zap.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger, bus: lifecycle.NewBus()}

	if err := a.openStore(ctx, cfg); err != nil {
		return nil, err
	}

	a.session = snapshot.NewSession(a.kv)
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.Backend.RequestsPerSecond, logger)

	var local notify.LocalNotifier
	if fcm := notify.NewFCMSender(cfg.Push.FCMURL, cfg.Push.FCMKey, cfg.Push.DeviceToken, logger); fcm != nil {
		local = fcm
	} else {
		logger.Info("FCM not configured, local notifications go to the log")
		local = notify.NewLogSender(logger)
	}

	dispatcher := notify.NewDispatcher(a.session, local, client, logger)
	if a.recorder != nil {
		dispatcher.WithRecorder(a.recorder)
	}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
		a.closers = append(a.closers, producer.Close)
		dispatcher.WithPublisher(broker.NewEventPublisher(producer))
		logger.Info("Kafka dispatch events enabled", zap.String("topic", cfg.Kafka.TopicNotifications))
	}

	deps := monitor.Deps{
		Session:    a.session,
		Backend:    client,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	cartState := snapshot.NewCartState(a.kv)
	engagement := snapshot.NewEngagement(a.kv)

	monitors := []monitor.Monitor{
		monitor.NewCart(deps, cartState, cfg.Schedule.CartInterval),
		monitor.NewPrice(deps, snapshot.NewPriceHistory(a.kv), cfg.Schedule.PriceInterval),
		monitor.NewOrders(deps, snapshot.NewOrderStatuses(a.kv), cfg.Schedule.OrderInterval),
		monitor.NewInventory(deps, snapshot.NewOutOfStock(a.kv), cfg.Schedule.InventoryInterval),
		monitor.NewEngagement(deps, engagement, cfg.Schedule.EngagementInterval),
	}

	handler := lifecycle.NewHandler(cartState, engagement, logger)
	a.registry = engine.New(monitors, a.bus, handler.Handle, logger)
	return a, nil
}

// openStore connects the configured kvstore driver
func (a *app) openStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Store.Driver {
	case "memory", "":
		m := kvstore.NewMemory()
		a.kv, a.ledger = m, m
		a.logger.Warn("Using in-memory store, snapshots are lost on restart")

	case "redis":
		client, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.kv, a.ledger, a.ready = client, client, client.Ping
		a.closers = append(a.closers, client.Close)
		a.logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

	case "postgres":
		db, err := store.NewStore(cfg.Store.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return err
		}
		a.kv, a.ledger, a.recorder, a.ready = db, db, db, db.Ping
		a.closers = append(a.closers, db.Close)
		a.logger.Info("Database connected")

	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
	return nil
}

// Close releases connections in reverse order of opening
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error closing resource", zap.Error(err))
		}
	}
}

package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/volk7/alerting/alarm"
	"github.com/volk7/alerting/bus"
	"github.com/volk7/alerting/controller"
	"github.com/volk7/alerting/errors"
	"github.com/volk7/alerting/logger"
	"github.com/volk7/alerting/scheduler"
	"github.com/volk7/alerting/server"
	"github.com/volk7/alerting/store"
)

// ServeCmd starts the alarm service: store, scheduler, bus, controller and
// HTTP façade wired together and run until a shutdown signal arrives.
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the alarm scheduling service",
	RunE:    runServe,
}

const shutdownGrace = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	log := logger.Logger

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := store.OpenWithMigrations(cfg.DatabaseURL, store.PoolConfig{
		MinConns: cfg.MinDBConnections,
		MaxConns: cfg.MaxDBConnections,
	}, logger.ComponentLogger("store"))
	if err != nil {
		log.Errorw("store unreachable at startup", "error", err)
		os.Exit(2)
	}
	defer db.Close()

	st := store.NewStore(db, logger.ComponentLogger("store"))
	index := scheduler.NewIndex()
	eventBus := bus.New(bus.WithLogger(logger.ComponentLogger("bus")))

	if warning := controller.CheckWorkerMemoryPressure(cfg.WorkerThreads); warning != "" {
		log.Warnw("worker memory pressure check", "warning", warning)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrlCfg := controller.DefaultConfig()
	ctrlCfg.Workers = cfg.WorkerThreads
	ctrlCfg.CleanupInterval = cfg.cleanupInterval()
	ctrlCfg.ReconcileInterval = cfg.reconcileInterval()

	ctrl := controller.New(ctx, st, index, eventBus, ctrlCfg, logger.ComponentLogger("controller"))

	if err := ctrl.ColdStart(ctx); err != nil {
		return errors.Wrap(err, "cold start")
	}
	ctrl.Run()
	defer ctrl.Stop()

	tick := scheduler.NewTicker(ctx, index, scheduler.DefaultTickerConfig(), ctrl.HandleDue, logger.ComponentLogger("scheduler"))
	tick.Start()
	defer tick.Stop()

	srv := server.New(server.Config{
		Store:           st,
		Index:           index,
		Ticker:          tick,
		DefaultTimezone: cfg.DefaultTimezone,
		Logger:          logger.ComponentLogger("server"),
		OnAlarmChanged:  func(a *alarm.Alarm) { ctrl.ApplyCreateOrUpdate(a) },
		OnAlarmCanceled: ctrl.ApplyCancelOrDelete,
	})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv}

	var relay *bus.Relay
	if cfg.BusURL != "" {
		relay = bus.NewRelay(eventBus, log, bus.TopicAlarmTriggered, bus.TopicInternalError)
		relay.Start()
		mux := http.NewServeMux()
		mux.Handle("/", srv)
		mux.Handle("/relay", relay)
		httpServer.Handler = mux
	}

	errChan := make(chan error, 1)
	go func() {
		log.Infow("alarmd listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "http server failed")
	case <-sigChan:
		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "http shutdown")
		}
	}

	return nil
}

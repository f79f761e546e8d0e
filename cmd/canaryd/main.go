// Command canaryd is a self-hosted Blue Canary receiver. It accepts the
// events sent by the client library and stores them in BadgerDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/brightfish/bluecanary/pkg/config"
	"github.com/brightfish/bluecanary/pkg/server"
	"github.com/brightfish/bluecanary/pkg/server/monitor"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "path to a canaryd.yaml config file")
	pflag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "canaryd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := server.LoadConfig(configFile)
	if err != nil {
		return err
	}

	logger, err := server.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting Blue Canary receiver",
		zap.String("version", server.Version),
		zap.String("port", cfg.Port),
		zap.Int64("max_storage_gb", cfg.MaxStorageGB),
		zap.Int64("max_memory_mb", cfg.MaxMemoryMB))

	store, err := server.InitializeStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	storageMonitor := monitor.NewStorageMonitor(cfg.DataDir, cfg.MaxStorageBytes())
	ingestHandler, exportHandler, hub := server.InitializeHandlers(store, storageMonitor, logger)
	retentionJob, retentionMonitor := server.InitializeRetention(store, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	stopRetention := make(chan bool)
	wg.Add(1)
	go server.RunRetention(retentionJob, stopRetention, &wg)

	stopGC := make(chan bool)
	wg.Add(1)
	go server.RunBadgerGC(store, logger.Named("gc"), stopGC, &wg)

	router := mux.NewRouter()
	server.SetupRoutes(router, ingestHandler, exportHandler, storageMonitor, retentionMonitor, hub, cfg.Port)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", zap.Stringer("signal", sig))
	case err = <-serverErr:
		logger.Error("server failed", zap.Error(err))
	}

	// Background tasks must stop before wg.Wait
	cancel()
	close(stopRetention)
	close(stopGC)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("server shutdown", zap.Error(shutdownErr))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("background tasks stopped")
	case <-time.After(5 * time.Second):
		logger.Warn("background tasks did not stop in time")
	}

	logger.Info("receiver exited")
	return err
}

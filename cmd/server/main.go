package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytgrab/api"
	"github.com/yourusername/ytgrab/api/handlers"
	"github.com/yourusername/ytgrab/internal/app"
	"github.com/yourusername/ytgrab/internal/infrastructure"
	"github.com/yourusername/ytgrab/pkg/logger"
)

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting ytgrab server",
		zap.String("version", "1.0.0"),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Int("max_concurrent", config.Engine.MaxConcurrent))

	if err := os.MkdirAll(config.Engine.OutputDir, 0755); err != nil {
		log.Fatal("Failed to create output directory", zap.Error(err))
	}

	workspace, err := infrastructure.NewTempWorkspace(config.Engine.TempDir, log)
	if err != nil {
		log.Fatal("Failed to initialize workspace", zap.Error(err))
	}

	// History is optional; the engine runs fine without the archive
	var history *infrastructure.SQLiteHistoryRepository
	var historyReader handlers.JobHistory
	var historyRecorder app.HistoryRecorder
	if config.History.Enabled {
		history, err = infrastructure.NewSQLiteHistoryRepository(config.History.DatabasePath)
		if err != nil {
			log.Fatal("Failed to initialize history repository", zap.Error(err))
		}
		defer history.Close()
		historyReader = history
		historyRecorder = history
	}

	provider := infrastructure.NewInnerTubeProvider(config.Engine.RequestTimeout, log)
	resolver := app.NewResolver(provider, config.Engine.AllowedQualities, log)
	fetcher := infrastructure.NewHTTPStreamFetcher(config.Engine.RequestTimeout, log)

	merger := infrastructure.NewFFmpegMerger(config.Engine.FFmpegBinary, config.Engine.MergeTimeout, log)
	if !merger.Available() {
		log.Warn("ffmpeg binary not found; adaptive merging will fail",
			zap.String("binary", config.Engine.FFmpegBinary))
	}

	playlists := infrastructure.NewYTDLPPlaylistLister(config.Engine.RequestTimeout, log)

	store := app.NewJobStore(config.Engine.StatusRetention)
	jobMgr := app.NewJobManager(store, resolver, fetcher, merger, playlists, workspace, historyRecorder, &config.Engine, log)
	jobMgr.Start()

	router := api.SetupRouter(jobMgr, historyReader, log)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop after the HTTP surface so in-flight requests see consistent state
	jobMgr.Stop()

	log.Info("Server exited")
}

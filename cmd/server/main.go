package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/api"
	"github.com/yourusername/mediagrab/internal/app"
	"github.com/yourusername/mediagrab/internal/infrastructure"
	"github.com/yourusername/mediagrab/pkg/logger"
)

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	for _, dir := range []string{config.Download.OutputDir, config.Download.LogsDir, filepath.Dir(config.Database.Path)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create directory %s: %v\n", dir, err)
			os.Exit(1)
		}
	}

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		Format:  config.Logging.Format,
		LogsDir: config.Download.LogsDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer multiLog.Close()

	log := multiLog.General()
	log.Info("Starting mediagrab server",
		zap.String("version", "1.0.0"),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("ytdlp", config.Extract.YTDLPBinary),
		zap.Int("max_streams", config.Download.MaxConcurrentStreams))

	repo, err := infrastructure.NewSQLiteDownloadRepository(config.Database.Path)
	if err != nil {
		log.Fatal("Failed to open history database", zap.Error(err))
	}

	extractor := infrastructure.NewExtractor(
		config.Extract.YTDLPBinary, config.Extract.StrategyTimeout, nil, multiLog.Extract())
	gallery := infrastructure.NewGalleryExtractor(
		config.Extract.GalleryBinary, config.Extract.StrategyTimeout, nil, multiLog.Extract())
	scraper := infrastructure.NewFallbackScraper(
		config.Fallback.FetchTimeout, config.Fallback.MaxRedirects, multiLog.Extract())

	analyzer := app.NewAnalyzer(extractor, gallery, scraper, config.Extract.CacheTTL, multiLog.Extract())
	downloadMgr := app.NewDownloadManager(
		config.Extract.YTDLPBinary, config.Download.OutputDir, config.Download.LogsDir,
		repo, multiLog.Download())
	streamMgr := app.NewStreamManager(
		config.Extract.YTDLPBinary, config.Download.MaxConcurrentStreams, multiLog.Download())

	downloadMgr.StartJanitor(config.Download.JanitorInterval, config.Download.RetainTerminal)
	defer downloadMgr.StopJanitor()

	router := api.SetupRouter(analyzer, downloadMgr, streamMgr, multiLog)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()
	log.Info("Server listening", zap.String("addr", addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}

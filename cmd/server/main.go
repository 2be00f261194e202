package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/httpdl-go/api"
	"github.com/yourusername/httpdl-go/api/handlers"
	"github.com/yourusername/httpdl-go/internal/app"
	"github.com/yourusername/httpdl-go/internal/domain"
	"github.com/yourusername/httpdl-go/internal/infrastructure"
	"github.com/yourusername/httpdl-go/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Category files are optional; without them errors only reach the main log
	var multiLog *logger.MultiLogger
	if config.Logging.LogsDir != "" {
		multiLog, err = logger.NewMultiLogger(logger.MultiLoggerConfig{
			Level:   config.Logging.Level,
			LogsDir: config.Logging.LogsDir,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize category logs: %w", err)
		}
		defer multiLog.Close()
	}

	log, err := logger.NewWithCategories(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	}, multiLog)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting httpdl server",
		zap.String("version", handlers.Version),
		zap.String("addr", config.Server.Address()),
		zap.String("download_dir", config.Download.Dir),
		zap.Bool("history", config.History.Enabled))

	var repo domain.DownloadRepository
	if config.History.Enabled {
		sqliteRepo, err := infrastructure.NewSQLiteDownloadRepository(config.History.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize repository: %w", err)
		}
		defer sqliteRepo.Close()
		repo = sqliteRepo
	}

	sessionLog := log
	if multiLog != nil {
		sessionLog = multiLog.WithCategory(log, logger.CategorySession)
	}

	ui := infrastructure.NewHeadlessUI(&config.Download, sessionLog)
	downloadMgr := app.NewDownloadManager(
		infrastructure.NewHTTPTransport(&config.HTTP, log.Named("http")),
		infrastructure.NewOsFileSystem(),
		ui,
		repo,
		infrastructure.NewNotificationService(&config.Notification, log),
		&config.Download,
		sessionLog,
	)

	if err := downloadMgr.RecoverInterrupted(); err != nil {
		log.Warn("Failed to recover interrupted downloads", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	logsDir := ""
	if multiLog != nil {
		logsDir = multiLog.GetLogsDir()
	}
	router := api.SetupRouter(downloadMgr, ui, log, logsDir)

	server := &http.Server{
		Addr:    config.Server.Address(),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
		return err
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := downloadMgr.Shutdown(ctx); err != nil {
		log.Error("Error stopping download", zap.Error(err))
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}

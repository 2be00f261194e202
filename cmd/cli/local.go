package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/httpdl-go/internal/app"
	"github.com/yourusername/httpdl-go/internal/domain"
	"github.com/yourusername/httpdl-go/internal/infrastructure"
	"github.com/yourusername/httpdl-go/pkg/logger"
)

// reportedError is a failure the terminal UI has already shown
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

var getCmd = &cobra.Command{
	Use:   "get [url]",
	Short: "Download a file in this terminal",
	Long: `Download a file in this terminal without a server.
Ctrl-C cancels the download and removes the partial file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		assumeYes, _ := cmd.Flags().GetBool("yes")
		verbose, _ := cmd.Flags().GetBool("verbose")

		config, err := app.LoadConfig(configPath)
		if err != nil {
			return err
		}

		log := logger.NewDefault()
		if verbose {
			if log, err = logger.New(logger.Config{Level: "debug", Format: "console", OutputPath: "stderr"}); err != nil {
				return err
			}
		}
		defer log.Sync()

		ui := infrastructure.NewTerminalUI(os.Stdin, cmd.OutOrStdout(), assumeYes)
		return runLocalDownload(cmd.Context(), config, ui, args[0], dir, log)
	},
}

// runLocalDownload runs one session with the terminal UI and returns its error
func runLocalDownload(ctx context.Context, config *domain.Config, ui *infrastructure.TerminalUI, rawURL, dir string, log *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var repo domain.DownloadRepository
	if config.History.Enabled {
		sqliteRepo, err := infrastructure.NewSQLiteDownloadRepository(config.History.DatabasePath)
		if err != nil {
			log.Warn("Download history unavailable", zap.Error(err))
		} else {
			defer sqliteRepo.Close()
			repo = sqliteRepo
		}
	}

	manager := app.NewDownloadManager(
		infrastructure.NewHTTPTransport(&config.HTTP, log.Named("http")),
		infrastructure.NewOsFileSystem(),
		ui,
		repo,
		infrastructure.NewNotificationService(&config.Notification, log),
		&config.Download,
		log,
	)

	ui.Header(rawURL)
	if _, err := manager.StartDownload(rawURL, dir); err != nil {
		return &reportedError{err: err}
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer func() {
		signal.Stop(interrupts)
		close(interrupts)
	}()

	go func() {
		for range interrupts {
			if err := manager.CancelDownload(); err != nil {
				log.Debug("Nothing to cancel", zap.Error(err))
			}
			ui.Interrupt()
		}
	}()

	outcome, err := manager.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for download: %w", err)
	}
	if outcome.Err != nil {
		return &reportedError{err: outcome.Err}
	}
	return nil
}

func init() {
	getCmd.Flags().StringP("dir", "d", "", "Destination directory")
	getCmd.Flags().BoolP("yes", "y", false, "Answer yes to overwrite and redirect questions")
	getCmd.Flags().BoolP("verbose", "v", false, "Log debug output to stderr")
}

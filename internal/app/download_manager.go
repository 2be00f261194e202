package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/yourusername/httpdl-go/internal/domain"
	"github.com/yourusername/httpdl-go/internal/infrastructure"
	"go.uber.org/zap"
)

// CurrentDownload is what the host sees of the session in flight or the last one
type CurrentDownload struct {
	Download       *domain.Download `json:"download,omitempty"`
	Session        SessionState     `json:"session"`
	TriggerEnabled bool             `json:"trigger_enabled"`
	Message        string           `json:"message,omitempty"`
	IsError        bool             `json:"is_error"`
}

// DownloadManager runs download sessions for a host and keeps their history
type DownloadManager struct {
	session  *Session
	repo     domain.DownloadRepository
	notifier *infrastructure.NotificationService
	config   *domain.DownloadConfig
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	startMu   sync.Mutex
	persistMu sync.Mutex

	mu             sync.RWMutex
	current        *domain.Download
	created        bool
	triggerEnabled bool
	message        string
	isError        bool
}

// NewDownloadManager creates a new download manager. repo and notifier may be nil.
func NewDownloadManager(
	transport domain.Transport,
	fs domain.FileSystem,
	ui domain.UI,
	repo domain.DownloadRepository,
	notifier *infrastructure.NotificationService,
	config *domain.DownloadConfig,
	logger *zap.Logger,
) *DownloadManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	dm := &DownloadManager{
		repo:           repo,
		notifier:       notifier,
		config:         config,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
		triggerEnabled: true,
	}
	dm.session = NewSession(transport, fs, &trackingUI{dm: dm, next: ui}, logger.Named("session"))
	dm.session.SetFinishHandler(dm.handleOutcome)
	return dm
}

// StartDownload starts a session for rawURL. dir defaults to the configured
// download directory. The returned record reflects the state after Start;
// it is nil when the request was rejected before a session existed.
func (dm *DownloadManager) StartDownload(rawURL, dir string) (*domain.Download, error) {
	dm.startMu.Lock()
	defer dm.startMu.Unlock()

	if dm.session.Active() {
		return nil, domain.ErrSessionActive
	}
	if dir == "" && dm.config != nil {
		dir = dm.config.Dir
	}
	if dir == "" {
		dir = domain.DefaultDownloadDir()
	}

	download := domain.NewDownload(strings.TrimSpace(rawURL), dir)
	download.MarkRequesting(download.URL)

	dm.mu.Lock()
	previous, previousCreated := dm.current, dm.created
	dm.current = download
	dm.created = false
	dm.mu.Unlock()

	err := dm.session.Start(dm.ctx, rawURL, dir)
	if err != nil && (errors.Is(err, domain.ErrSessionActive) || domain.IsKind(err, domain.KindInvalidURL)) {
		dm.mu.Lock()
		dm.current, dm.created = previous, previousCreated
		dm.mu.Unlock()
		dm.logger.Warn("Download rejected", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}

	dm.mu.Lock()
	terminalBeforeStart := err != nil && !download.IsTerminal()
	if terminalBeforeStart {
		if domain.IsKind(err, domain.KindCanceled) {
			download.MarkCancelled(err)
		} else {
			download.MarkFailed(err)
		}
	}
	snapshot := *download
	dm.mu.Unlock()

	dm.persist(download)

	if terminalBeforeStart {
		dm.logger.Info("Download ended before transfer",
			zap.String("id", snapshot.ID),
			zap.String("url", snapshot.URL),
			zap.String("status", string(snapshot.Status)),
			zap.Error(err))
		dm.notify(&snapshot)
		return &snapshot, err
	}

	if err == nil {
		dm.logger.Info("Download session started",
			zap.String("id", snapshot.ID),
			zap.String("url", snapshot.URL),
			zap.String("dir", snapshot.DestinationDir))
	}
	return &snapshot, err
}

// CancelDownload cancels the session in flight
func (dm *DownloadManager) CancelDownload() error {
	if !dm.session.Active() {
		return domain.ErrNoActiveDownload
	}
	dm.session.Cancel()

	dm.mu.RLock()
	if dm.current != nil {
		dm.logger.Info("Download cancel requested", zap.String("id", dm.current.ID))
	}
	dm.mu.RUnlock()
	return nil
}

// Wait blocks until the session in flight ends
func (dm *DownloadManager) Wait(ctx context.Context) (domain.Outcome, error) {
	return dm.session.Wait(ctx)
}

// Current returns a snapshot of the current or last download
func (dm *DownloadManager) Current() CurrentDownload {
	state := dm.session.State()

	dm.mu.RLock()
	defer dm.mu.RUnlock()

	current := CurrentDownload{
		Session:        state,
		TriggerEnabled: dm.triggerEnabled,
		Message:        dm.message,
		IsError:        dm.isError,
	}
	if dm.current != nil {
		d := *dm.current
		current.Download = &d
	}
	return current
}

// GetDownload returns a history record
func (dm *DownloadManager) GetDownload(id string) (*domain.Download, error) {
	if dm.repo == nil {
		return nil, domain.ErrHistoryDisabled
	}
	return dm.repo.FindByID(id)
}

// ListDownloads returns the history, newest first, optionally filtered by status
func (dm *DownloadManager) ListDownloads(status domain.DownloadStatus) ([]*domain.Download, error) {
	if dm.repo == nil {
		return nil, domain.ErrHistoryDisabled
	}
	filters := make(map[string]interface{})
	if status != "" {
		if !domain.ValidateStatus(status) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidStatus, status)
		}
		filters["status"] = status
	}
	return dm.repo.FindAll(filters)
}

// DeleteDownload removes a finished record from the history
func (dm *DownloadManager) DeleteDownload(id string) error {
	if dm.repo == nil {
		return domain.ErrHistoryDisabled
	}

	dm.mu.RLock()
	busy := dm.current != nil && dm.current.ID == id && !dm.current.IsTerminal()
	dm.mu.RUnlock()
	if busy {
		return domain.ErrSessionActive
	}

	if err := dm.repo.Delete(id); err != nil {
		return err
	}
	dm.logger.Info("Download deleted from history", zap.String("id", id))
	return nil
}

// GetStats returns history statistics
func (dm *DownloadManager) GetStats() (*domain.DownloadStats, error) {
	if dm.repo == nil {
		return nil, domain.ErrHistoryDisabled
	}
	return dm.repo.GetStats()
}

// RecoverInterrupted fails history records left active by a previous process
func (dm *DownloadManager) RecoverInterrupted() error {
	if dm.repo == nil {
		return nil
	}
	n, err := dm.repo.ResetInterrupted()
	if err != nil {
		return fmt.Errorf("failed to reset interrupted downloads: %w", err)
	}
	if n > 0 {
		dm.logger.Info("Marked interrupted downloads as failed", zap.Int64("count", n))
	}
	return nil
}

// Running reports whether the manager accepts new downloads
func (dm *DownloadManager) Running() bool {
	return dm.ctx.Err() == nil
}

// Shutdown cancels the session in flight and waits for it to end
func (dm *DownloadManager) Shutdown(ctx context.Context) error {
	defer dm.cancel()

	if !dm.session.Active() {
		return nil
	}
	dm.session.Cancel()
	_, err := dm.session.Wait(ctx)
	return err
}

// handleOutcome records the terminal state of the current session
func (dm *DownloadManager) handleOutcome(o domain.Outcome) {
	dm.mu.Lock()
	download := dm.current
	if download == nil {
		dm.mu.Unlock()
		return
	}
	download.ApplyOutcome(o)
	snapshot := *download
	dm.mu.Unlock()

	dm.persist(download)

	fields := []zap.Field{
		zap.String("id", snapshot.ID),
		zap.String("url", snapshot.URL),
		zap.String("final_url", snapshot.FinalURL),
		zap.String("status", string(snapshot.Status)),
		zap.Int64("bytes", o.BytesWritten),
		zap.Int("redirects", snapshot.Redirects),
	}
	switch snapshot.Status {
	case domain.StatusCompleted:
		dm.logger.Info("Download completed", append(fields, zap.String("file", snapshot.FilePath))...)
	case domain.StatusCancelled:
		dm.logger.Info("Download cancelled", fields...)
	default:
		dm.logger.Error("Download failed", append(fields, zap.Error(o.Err))...)
	}

	dm.notify(&snapshot)
}

// persist writes the current state of download to the history
func (dm *DownloadManager) persist(download *domain.Download) {
	if dm.repo == nil {
		return
	}

	dm.persistMu.Lock()
	defer dm.persistMu.Unlock()

	dm.mu.Lock()
	if dm.current != download {
		dm.mu.Unlock()
		return
	}
	snapshot := *download
	created := dm.created
	dm.created = true
	dm.mu.Unlock()

	var err error
	if created {
		err = dm.repo.Update(&snapshot)
	} else {
		err = dm.repo.Create(&snapshot)
	}
	if err != nil {
		dm.logger.Error("Failed to save download history",
			zap.String("id", snapshot.ID),
			zap.Error(err))
	}
}

func (dm *DownloadManager) notify(download *domain.Download) {
	switch download.Status {
	case domain.StatusCompleted:
		dm.notifier.NotifyDownloadCompleted(download)
	case domain.StatusFailed:
		dm.notifier.NotifyDownloadFailed(download)
	case domain.StatusCancelled:
		dm.notifier.NotifyDownloadCancelled(download)
	}
}

// trackingUI mirrors session feedback into the manager before passing it on
type trackingUI struct {
	dm   *DownloadManager
	next domain.UI
}

func (u *trackingUI) Confirm(prompt domain.Prompt) bool {
	if prompt.Kind == domain.PromptRedirect {
		u.dm.updateCurrent(func(d *domain.Download) { d.MarkRedirectPending(prompt.Target) })
		u.dm.persistCurrent()
	}

	accepted := u.next.Confirm(prompt)

	if prompt.Kind == domain.PromptRedirect && accepted {
		u.dm.updateCurrent(func(d *domain.Download) {
			d.MarkRequesting(prompt.Target)
			d.Redirects++
		})
	}
	return accepted
}

func (u *trackingUI) SetProgress(current, total int64) {
	u.dm.updateCurrent(func(d *domain.Download) { d.MarkReceiving(current, total) })
	u.next.SetProgress(current, total)
}

func (u *trackingUI) ShowStatus(message string) {
	u.dm.mu.Lock()
	u.dm.message, u.dm.isError = message, false
	u.dm.mu.Unlock()
	u.next.ShowStatus(message)
}

func (u *trackingUI) ShowError(message string) {
	u.dm.mu.Lock()
	u.dm.message, u.dm.isError = message, true
	u.dm.mu.Unlock()
	u.next.ShowError(message)
}

func (u *trackingUI) SetTriggerEnabled(enabled bool) {
	u.dm.mu.Lock()
	u.dm.triggerEnabled = enabled
	u.dm.mu.Unlock()
	u.next.SetTriggerEnabled(enabled)
}

func (dm *DownloadManager) updateCurrent(fn func(d *domain.Download)) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.current != nil && !dm.current.IsTerminal() {
		fn(dm.current)
	}
}

func (dm *DownloadManager) persistCurrent() {
	dm.mu.RLock()
	download := dm.current
	dm.mu.RUnlock()
	if download != nil {
		dm.persist(download)
	}
}

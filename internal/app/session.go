package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yourusername/httpdl-go/internal/domain"
	"go.uber.org/zap"
)

// defaultFileName is used when the URL path has no last element
const defaultFileName = "download"

// errNoSession is returned by Wait before any session was started
var errNoSession = errors.New("no download session started")

// attempt is one HTTP request of a session. A session has a new attempt
// for every followed redirect.
type attempt struct {
	transfer domain.Transfer
	finished bool
}

// SessionState is a point-in-time view of a session
type SessionState struct {
	Active        bool                  `json:"active"`
	Status        domain.DownloadStatus `json:"status,omitempty"`
	URL           string                `json:"url,omitempty"`
	FilePath      string                `json:"file_path,omitempty"`
	BytesReceived int64                 `json:"bytes_received"`
	BytesTotal    int64                 `json:"bytes_total"`
	BytesWritten  int64                 `json:"bytes_written"`
	Redirects     int                   `json:"redirects"`
}

// Session downloads one file at a time. It is driven by the events a
// Transport delivers and reports to a UI; the destination file is owned
// by the session from Start until the terminal event.
type Session struct {
	transport domain.Transport
	fs        domain.FileSystem
	ui        domain.UI
	logger    *zap.Logger

	mu            sync.Mutex
	active        bool
	status        domain.DownloadStatus
	ctx           context.Context
	url           *url.URL
	filePath      string
	file          domain.WritableFile
	current       *attempt
	aborted       bool
	writeErr      error
	bytesReceived int64
	bytesTotal    int64
	bytesWritten  int64
	redirects     int
	done          chan struct{}
	outcome       domain.Outcome
	onFinish      func(domain.Outcome)
}

// NewSession creates a new download session
func NewSession(transport domain.Transport, fs domain.FileSystem, ui domain.UI, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		transport:  transport,
		fs:         fs,
		ui:         ui,
		logger:     logger,
		bytesTotal: -1,
	}
}

// SetFinishHandler registers fn to receive every terminal outcome. fn runs
// before the session becomes idle, so no new session can start meanwhile.
func (s *Session) SetFinishHandler(fn func(domain.Outcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinish = fn
}

// Start begins downloading rawURL into destinationDir. It returns once the
// request is issued; the outcome is reported to the UI and through Wait.
func (s *Session) Start(ctx context.Context, rawURL, destinationDir string) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return domain.ErrSessionActive
	}
	s.active = true
	s.aborted = false
	s.outcome = domain.Outcome{}
	s.done = make(chan struct{})
	s.mu.Unlock()

	target, err := ParseDownloadURL(rawURL)
	if err != nil {
		return s.reject(err, fmt.Sprintf("Invalid URL %q.", rawURL))
	}

	fileName := FileNameFromURL(target)
	filePath := filepath.Join(destinationDir, fileName)

	if err := s.fs.MkdirAll(destinationDir); err != nil {
		return s.reject(domain.NewDownloadError(domain.KindDirectoryCreate, "mkdir "+destinationDir, err),
			fmt.Sprintf("Unable to create the directory %s: %v.", destinationDir, err))
	}

	exists, err := s.fs.Exists(filePath)
	if err != nil {
		return s.reject(domain.NewDownloadError(domain.KindFileOpen, "stat "+filePath, err),
			fmt.Sprintf("Unable to save the file %s: %v.", fileName, err))
	}
	if exists {
		overwrite := s.ui.Confirm(domain.Prompt{
			Kind:    domain.PromptOverwrite,
			Message: fmt.Sprintf("There already exists a file called %s in %s. Overwrite?", fileName, destinationDir),
			Target:  filePath,
		})
		if !overwrite {
			err := domain.NewDownloadError(domain.KindCanceled, "overwrite "+filePath, domain.ErrOverwriteDeclined)
			s.release(err)
			s.ui.ShowStatus(fmt.Sprintf("Kept the existing file %s.", filePath))
			s.logger.Info("Overwrite declined", zap.String("file", filePath))
			return err
		}
	}

	file, err := s.fs.Create(filePath)
	if err != nil {
		return s.reject(domain.NewDownloadError(domain.KindFileOpen, "open "+filePath, err),
			fmt.Sprintf("Unable to save the file %s: %v.", fileName, err))
	}

	s.mu.Lock()
	s.ctx = ctx
	s.url = target
	s.filePath = filePath
	s.file = file
	s.writeErr = nil
	s.bytesReceived = 0
	s.bytesTotal = -1
	s.bytesWritten = 0
	s.redirects = 0
	s.mu.Unlock()

	s.logger.Info("Download started",
		zap.String("url", target.String()),
		zap.String("file", filePath))

	s.ui.SetTriggerEnabled(false)
	s.ui.ShowStatus(fmt.Sprintf("Downloading %s.", target.Host))

	return s.issue()
}

// Cancel aborts the download in flight. Resources are released when the
// transport reports the end of the request.
func (s *Session) Cancel() {
	s.mu.Lock()
	if !s.active || s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	var transfer domain.Transfer
	if s.current != nil {
		transfer = s.current.transfer
	}
	s.mu.Unlock()

	s.logger.Info("Download cancel requested")
	if transfer != nil {
		transfer.Abort()
	}
	s.ui.SetTriggerEnabled(true)
}

// OnDataReceived appends a chunk to the destination file
func (s *Session) OnDataReceived(chunk []byte) {
	s.mu.Lock()
	if s.file == nil || s.aborted || s.writeErr != nil {
		s.mu.Unlock()
		return
	}
	s.status = domain.StatusReceiving
	n, err := s.file.Write(chunk)
	s.bytesWritten += int64(n)
	var transfer domain.Transfer
	if err != nil {
		s.writeErr = err
		if s.current != nil {
			transfer = s.current.transfer
		}
	}
	s.mu.Unlock()

	if transfer != nil {
		s.logger.Error("Writing destination file failed", zap.Error(err))
		transfer.Abort()
	}
}

// OnProgress forwards transfer progress to the UI
func (s *Session) OnProgress(received, total int64) {
	s.mu.Lock()
	if !s.active || s.aborted {
		s.mu.Unlock()
		return
	}
	s.status = domain.StatusReceiving
	s.bytesReceived = received
	s.bytesTotal = total
	s.mu.Unlock()

	s.ui.SetProgress(received, total)
}

// OnRequestFinished resolves the end of one request: cancel, failure,
// redirect or success.
func (s *Session) OnRequestFinished(result domain.TransferResult) {
	s.mu.Lock()
	if s.current != nil {
		s.current.finished = true
		s.current.transfer = nil
	}
	aborted := s.aborted
	writeErr := s.writeErr
	ctx := s.ctx
	target := s.url
	filePath := s.filePath
	s.mu.Unlock()

	switch {
	case aborted:
		s.finishCanceled(domain.NewDownloadError(domain.KindCanceled, "", domain.ErrCanceled), "Download canceled.")
	case writeErr != nil:
		s.finishFailed(domain.NewDownloadError(domain.KindTransfer, "write "+filePath, writeErr),
			fmt.Sprintf("Download failed: %v.", writeErr))
	case result.Err != nil && ctx != nil && ctx.Err() != nil:
		s.finishCanceled(domain.NewDownloadError(domain.KindCanceled, "", context.Cause(ctx)), "Download canceled.")
	case result.Err != nil:
		s.finishFailed(domain.NewDownloadError(domain.KindTransfer, "GET "+target.Redacted(), result.Err),
			fmt.Sprintf("Download failed: %v.", result.Err))
	case result.RedirectTarget != "":
		s.redirect(result.RedirectTarget)
	default:
		s.finishCompleted()
	}
}

// Wait blocks until the current session ends and returns its outcome
func (s *Session) Wait(ctx context.Context) (domain.Outcome, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return domain.Outcome{}, errNoSession
	}

	select {
	case <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.outcome, nil
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	}
}

// Active reports whether a session is in flight
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// State returns a snapshot of the session
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := SessionState{
		Active:        s.active,
		Status:        s.status,
		FilePath:      s.filePath,
		BytesReceived: s.bytesReceived,
		BytesTotal:    s.bytesTotal,
		BytesWritten:  s.bytesWritten,
		Redirects:     s.redirects,
	}
	if s.url != nil {
		state.URL = s.url.String()
	}
	return state
}

// issue sends the request for the current URL
func (s *Session) issue() error {
	a := &attempt{}
	s.mu.Lock()
	s.current = a
	s.status = domain.StatusRequesting
	ctx, target := s.ctx, s.url
	s.mu.Unlock()

	s.logger.Debug("Issuing request", zap.String("url", target.String()))

	transfer, err := s.transport.Get(ctx, target, s)
	if err != nil {
		derr := domain.NewDownloadError(domain.KindTransfer, "GET "+target.Redacted(), err)
		s.finishFailed(derr, fmt.Sprintf("Download failed: %v.", err))
		return derr
	}

	s.mu.Lock()
	abortNow := false
	if !a.finished {
		a.transfer = transfer
		abortNow = s.aborted
	}
	s.mu.Unlock()

	if abortNow {
		transfer.Abort()
	}
	return nil
}

// redirect asks whether to follow target and restarts the transfer if so
func (s *Session) redirect(rawTarget string) {
	s.mu.Lock()
	base := s.url
	s.mu.Unlock()

	ref, err := url.Parse(rawTarget)
	if err != nil {
		s.finishFailed(domain.NewDownloadError(domain.KindTransfer, "redirect", err),
			fmt.Sprintf("Download failed: invalid redirect target %q.", rawTarget))
		return
	}
	next := base.ResolveReference(ref)

	s.mu.Lock()
	s.status = domain.StatusRedirectPending
	s.mu.Unlock()

	accepted := s.ui.Confirm(domain.Prompt{
		Kind:    domain.PromptRedirect,
		Message: fmt.Sprintf("Redirect to %s ?", next),
		Target:  next.String(),
	})

	s.mu.Lock()
	aborted := s.aborted
	s.mu.Unlock()

	if aborted {
		s.finishCanceled(domain.NewDownloadError(domain.KindCanceled, "", domain.ErrCanceled), "Download canceled.")
		return
	}
	if !accepted {
		s.finishCanceled(domain.NewDownloadError(domain.KindCanceled, "redirect "+next.Redacted(), domain.ErrRedirectDeclined),
			fmt.Sprintf("Redirect to %s declined.", next))
		return
	}

	s.mu.Lock()
	file := s.file
	s.file = nil
	filePath := s.filePath
	s.mu.Unlock()

	if file != nil {
		if err := file.Close(); err != nil {
			s.logger.Warn("Closing destination file before redirect failed", zap.Error(err))
		}
	}

	reopened, err := s.fs.Create(filePath)
	if err != nil {
		s.finishFailed(domain.NewDownloadError(domain.KindFileOpen, "open "+filePath, err),
			fmt.Sprintf("Unable to save the file %s: %v.", filepath.Base(filePath), err))
		return
	}

	s.mu.Lock()
	s.file = reopened
	s.url = next
	s.redirects++
	s.bytesReceived = 0
	s.bytesTotal = -1
	s.bytesWritten = 0
	hops := s.redirects
	s.mu.Unlock()

	s.logger.Info("Following redirect",
		zap.String("from", base.String()),
		zap.String("to", next.String()),
		zap.Int("redirects", hops))

	_ = s.issue()
}

func (s *Session) finishCompleted() {
	s.mu.Lock()
	file := s.file
	s.file = nil
	filePath := s.filePath
	s.mu.Unlock()

	if file != nil {
		err := file.Sync()
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			s.removeFile(filePath)
			s.finishFailed(domain.NewDownloadError(domain.KindTransfer, "flush "+filePath, err),
				fmt.Sprintf("Download failed: %v.", err))
			return
		}
	}

	s.ui.ShowStatus(fmt.Sprintf("Downloaded to %s.", filePath))
	s.ui.SetTriggerEnabled(true)
	s.complete(domain.Outcome{Status: domain.StatusCompleted, FilePath: filePath})
}

func (s *Session) finishFailed(err error, message string) {
	s.discard()
	s.ui.ShowError(message)
	s.ui.SetTriggerEnabled(true)
	s.complete(domain.Outcome{Status: domain.StatusFailed, Err: err})
}

func (s *Session) finishCanceled(err error, message string) {
	s.discard()
	s.ui.ShowStatus(message)
	s.ui.SetTriggerEnabled(true)
	s.complete(domain.Outcome{Status: domain.StatusCancelled, Err: err})
}

// discard closes and deletes the partially written destination file
func (s *Session) discard() {
	s.mu.Lock()
	file := s.file
	s.file = nil
	filePath := s.filePath
	s.mu.Unlock()

	if file != nil {
		if err := file.Close(); err != nil {
			s.logger.Warn("Closing destination file failed", zap.Error(err))
		}
	}
	if filePath != "" {
		s.removeFile(filePath)
	}
}

func (s *Session) removeFile(filePath string) {
	if err := s.fs.Remove(filePath); err != nil {
		s.logger.Warn("Removing partial file failed", zap.String("file", filePath), zap.Error(err))
	}
}

// complete records the outcome and ends the session
func (s *Session) complete(o domain.Outcome) {
	s.mu.Lock()
	if s.url != nil {
		o.FinalURL = s.url.String()
	}
	o.Redirects = s.redirects
	if o.Status == domain.StatusCompleted {
		o.BytesWritten = s.bytesWritten
	}
	s.outcome = o
	s.status = o.Status
	s.current = nil
	onFinish := s.onFinish
	s.mu.Unlock()

	if onFinish != nil {
		onFinish(o)
	}

	s.mu.Lock()
	s.active = false
	done := s.done
	s.mu.Unlock()

	fields := []zap.Field{
		zap.String("status", string(o.Status)),
		zap.String("url", o.FinalURL),
		zap.Int64("bytes", o.BytesWritten),
		zap.Int("redirects", o.Redirects),
	}
	if o.Err != nil {
		fields = append(fields, zap.Error(o.Err))
	}
	s.logger.Info("Download finished", fields...)

	if done != nil {
		close(done)
	}
}

// reject ends a start attempt that never reached the network
func (s *Session) reject(err error, message string) error {
	s.release(err)
	s.logger.Warn("Download rejected", zap.Error(err))
	s.ui.ShowError(message)
	return err
}

// release ends a start attempt with err as its outcome
func (s *Session) release(err error) {
	status := domain.StatusFailed
	if domain.IsKind(err, domain.KindCanceled) {
		status = domain.StatusCancelled
	}

	s.mu.Lock()
	s.active = false
	s.outcome = domain.Outcome{Status: status, Err: err}
	done := s.done
	s.mu.Unlock()

	close(done)
}

// ParseDownloadURL validates rawURL as an absolute http or https URL
func ParseDownloadURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, domain.NewDownloadError(domain.KindInvalidURL, "parse", errors.New("empty URL"))
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.NewDownloadError(domain.KindInvalidURL, "parse", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, domain.NewDownloadError(domain.KindInvalidURL, "parse", fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, domain.NewDownloadError(domain.KindInvalidURL, "parse", errors.New("missing host"))
	}
	return u, nil
}

// FileNameFromURL derives the destination file name from the URL path
func FileNameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	switch name {
	case "", ".", "..", "/":
		return defaultFileName
	}
	return name
}

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DownloadStatus represents the current status of a download session
type DownloadStatus string

const (
	StatusRequesting      DownloadStatus = "requesting"
	StatusReceiving       DownloadStatus = "receiving"
	StatusRedirectPending DownloadStatus = "redirect_pending"
	StatusCompleted       DownloadStatus = "completed"
	StatusFailed          DownloadStatus = "failed"
	StatusCancelled       DownloadStatus = "cancelled"
)

// Download is the history record of one download session.
// A session may span several HTTP requests when redirects are followed.
type Download struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	URL            string         `json:"url" gorm:"not null"`
	FinalURL       string         `json:"final_url,omitempty"`
	DestinationDir string         `json:"destination_dir" gorm:"not null"`
	FilePath       string         `json:"file_path,omitempty"`
	Status         DownloadStatus `json:"status" gorm:"not null;index"`
	BytesReceived  int64          `json:"bytes_received" gorm:"default:0"`
	BytesTotal     int64          `json:"bytes_total" gorm:"default:-1"`
	Redirects      int            `json:"redirects" gorm:"default:0"`
	ErrorKind      ErrorKind      `json:"error_kind,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// NewDownload creates a new history record for a session
func NewDownload(url, destinationDir string) *Download {
	now := time.Now()
	return &Download{
		ID:             uuid.New().String(),
		URL:            url,
		FinalURL:       url,
		DestinationDir: destinationDir,
		Status:         StatusRequesting,
		BytesTotal:     -1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// MarkRequesting marks the download as waiting for a response
func (d *Download) MarkRequesting(url string) {
	d.Status = StatusRequesting
	d.FinalURL = url
	now := time.Now()
	if d.StartedAt == nil {
		d.StartedAt = &now
	}
	d.UpdatedAt = now
}

// MarkReceiving records progress of the current request
func (d *Download) MarkReceiving(received, total int64) {
	d.Status = StatusReceiving
	d.BytesReceived = received
	d.BytesTotal = total
	d.UpdatedAt = time.Now()
}

// MarkRedirectPending marks the download as waiting for a redirect decision
func (d *Download) MarkRedirectPending(target string) {
	d.Status = StatusRedirectPending
	d.FinalURL = target
	d.UpdatedAt = time.Now()
}

// MarkCompleted marks the download as completed
func (d *Download) MarkCompleted(filePath string, bytesWritten int64) {
	d.Status = StatusCompleted
	d.FilePath = filePath
	d.BytesReceived = bytesWritten
	d.ErrorKind = ""
	d.ErrorMessage = ""
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// MarkFailed marks the download as failed
func (d *Download) MarkFailed(err error) {
	d.Status = StatusFailed
	d.ErrorKind = KindOf(err)
	d.ErrorMessage = err.Error()
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// MarkCancelled marks the download as cancelled. err carries the reason
// (user cancel, declined overwrite or declined redirect) and may be nil.
func (d *Download) MarkCancelled(err error) {
	d.Status = StatusCancelled
	d.ErrorKind = KindCanceled
	d.ErrorMessage = ""
	if err != nil && !errors.Is(err, ErrCanceled) {
		d.ErrorMessage = err.Error()
	}
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// ApplyOutcome moves the record into the terminal state described by o
func (d *Download) ApplyOutcome(o Outcome) {
	if o.FinalURL != "" {
		d.FinalURL = o.FinalURL
	}
	d.Redirects = o.Redirects
	switch o.Status {
	case StatusCompleted:
		d.MarkCompleted(o.FilePath, o.BytesWritten)
	case StatusCancelled:
		d.MarkCancelled(o.Err)
	default:
		d.MarkFailed(o.Err)
	}
}

// IsTerminal checks if the download is in a terminal state
func (d *Download) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed || d.Status == StatusCancelled
}

// IsActive checks if the download still has a request in flight or pending
func (d *Download) IsActive() bool {
	return !d.IsTerminal()
}

// ValidateStatus checks if a status value is known
func ValidateStatus(status DownloadStatus) bool {
	switch status {
	case StatusRequesting, StatusReceiving, StatusRedirectPending,
		StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Outcome is the terminal result of one download session
type Outcome struct {
	Status       DownloadStatus
	FilePath     string
	FinalURL     string
	BytesWritten int64
	Redirects    int
	Err          error
}

// Succeeded reports whether the session produced a file
func (o Outcome) Succeeded() bool {
	return o.Status == StatusCompleted
}

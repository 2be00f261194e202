package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDownload(t *testing.T) {
	url := "https://example.com/a/image.jpg"
	dir := "/tmp/httpdl"

	download := NewDownload(url, dir)

	assert.NotEmpty(t, download.ID)
	assert.Equal(t, url, download.URL)
	assert.Equal(t, url, download.FinalURL)
	assert.Equal(t, dir, download.DestinationDir)
	assert.Equal(t, StatusRequesting, download.Status)
	assert.Equal(t, int64(-1), download.BytesTotal)
	assert.Equal(t, 0, download.Redirects)
}

func TestDownload_MarkRequesting(t *testing.T) {
	download := NewDownload("https://example.com/a", "/tmp")

	download.MarkRequesting("https://example.com/b")

	assert.Equal(t, StatusRequesting, download.Status)
	assert.Equal(t, "https://example.com/b", download.FinalURL)
	assert.NotNil(t, download.StartedAt)

	started := *download.StartedAt
	download.MarkRequesting("https://example.com/c")
	assert.Equal(t, started, *download.StartedAt, "start time is kept across redirects")
}

func TestDownload_MarkReceiving(t *testing.T) {
	download := NewDownload("https://example.com/a", "/tmp")

	download.MarkReceiving(100, 400)

	assert.Equal(t, StatusReceiving, download.Status)
	assert.Equal(t, int64(100), download.BytesReceived)
	assert.Equal(t, int64(400), download.BytesTotal)
}

func TestDownload_MarkCompleted(t *testing.T) {
	download := NewDownload("https://example.com/a", "/tmp")
	filePath := "/tmp/a"

	download.MarkCompleted(filePath, 42)

	assert.Equal(t, StatusCompleted, download.Status)
	assert.Equal(t, filePath, download.FilePath)
	assert.Equal(t, int64(42), download.BytesReceived)
	assert.NotNil(t, download.CompletedAt)
}

func TestDownload_MarkFailed(t *testing.T) {
	download := NewDownload("https://example.com/a", "/tmp")
	err := NewDownloadError(KindTransfer, "GET", errors.New("server replied: 404 Not Found"))

	download.MarkFailed(err)

	assert.Equal(t, StatusFailed, download.Status)
	assert.Equal(t, KindTransfer, download.ErrorKind)
	assert.Contains(t, download.ErrorMessage, "404 Not Found")
}

func TestDownload_MarkCancelled(t *testing.T) {
	download := NewDownload("https://example.com/a", "/tmp")

	download.MarkCancelled(NewDownloadError(KindCanceled, "", ErrCanceled))
	assert.Equal(t, StatusCancelled, download.Status)
	assert.Equal(t, KindCanceled, download.ErrorKind)
	assert.Empty(t, download.ErrorMessage)

	download.MarkCancelled(NewDownloadError(KindCanceled, "redirect", ErrRedirectDeclined))
	assert.Contains(t, download.ErrorMessage, "redirect declined")
}

func TestDownload_ApplyOutcome(t *testing.T) {
	download := NewDownload("https://example.com/a", "/tmp")

	download.ApplyOutcome(Outcome{
		Status:       StatusCompleted,
		FilePath:     "/tmp/b",
		FinalURL:     "https://example.com/b",
		BytesWritten: 7,
		Redirects:    1,
	})

	assert.Equal(t, StatusCompleted, download.Status)
	assert.Equal(t, "https://example.com/b", download.FinalURL)
	assert.Equal(t, 1, download.Redirects)
	assert.Equal(t, int64(7), download.BytesReceived)

	failed := NewDownload("https://example.com/a", "/tmp")
	failed.ApplyOutcome(Outcome{Status: StatusFailed, Err: NewDownloadError(KindFileOpen, "open", errors.New("denied"))})
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, KindFileOpen, failed.ErrorKind)
}

func TestDownload_IsTerminal(t *testing.T) {
	download := NewDownload("https://example.com/a", "/tmp")

	assert.False(t, download.IsTerminal())
	assert.True(t, download.IsActive())

	download.Status = StatusRedirectPending
	assert.False(t, download.IsTerminal())

	for _, s := range []DownloadStatus{StatusCompleted, StatusFailed, StatusCancelled} {
		download.Status = s
		assert.True(t, download.IsTerminal(), s)
	}
}

func TestValidateStatus(t *testing.T) {
	assert.True(t, ValidateStatus(StatusCompleted))
	assert.True(t, ValidateStatus(StatusRedirectPending))
	assert.False(t, ValidateStatus("queued"))
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a download session ended without a file
type ErrorKind string

const (
	KindInvalidURL      ErrorKind = "invalid_url"
	KindDirectoryCreate ErrorKind = "directory_create"
	KindFileOpen        ErrorKind = "file_open"
	KindTransfer        ErrorKind = "transfer"
	KindCanceled        ErrorKind = "canceled"
)

var (
	// ErrSessionActive is returned when a download is started while another one is in flight
	ErrSessionActive = errors.New("a download is already in progress")

	// ErrCanceled marks a user initiated cancellation
	ErrCanceled = errors.New("download canceled")

	// ErrOverwriteDeclined marks a start aborted because overwriting was refused
	ErrOverwriteDeclined = errors.New("overwrite declined")

	// ErrRedirectDeclined marks a session ended because a redirect was refused
	ErrRedirectDeclined = errors.New("redirect declined")

	// ErrNoActiveDownload is returned when cancelling while idle
	ErrNoActiveDownload = errors.New("no download in progress")

	// ErrDownloadNotFound is returned by history lookups for unknown IDs
	ErrDownloadNotFound = errors.New("download not found")

	// ErrHistoryDisabled is returned by history queries when no store is configured
	ErrHistoryDisabled = errors.New("download history is disabled")

	// ErrInvalidStatus is returned when filtering the history by an unknown status
	ErrInvalidStatus = errors.New("invalid status")
)

// DownloadError is the error type produced by a download session
type DownloadError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *DownloadError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// NewDownloadError wraps err with a kind and the operation that failed
func NewDownloadError(kind ErrorKind, op string, err error) *DownloadError {
	return &DownloadError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the ErrorKind carried by err, or "" when err is not a DownloadError
func KindOf(err error) ErrorKind {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a DownloadError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

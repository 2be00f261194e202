package domain

import (
	"context"
	"io"
	"net/url"
)

// Transport issues streamed GET requests.
// Get must return without waiting for the response; all further
// information is delivered to the sink from a single goroutine, in
// network order, and ends with exactly one OnRequestFinished call.
type Transport interface {
	Get(ctx context.Context, target *url.URL, sink TransferSink) (Transfer, error)
}

// Transfer is the handle of one in-flight request
type Transfer interface {
	// Abort requests the transfer to stop. The sink still receives
	// OnRequestFinished. Calling Abort more than once is harmless.
	Abort()
}

// TransferSink receives the events of one request.
// The chunk passed to OnDataReceived is only valid during the call.
type TransferSink interface {
	OnDataReceived(chunk []byte)
	OnProgress(received, total int64)
	OnRequestFinished(result TransferResult)
}

// TransferResult describes how a request ended
type TransferResult struct {
	StatusCode     int
	RedirectTarget string // raw Location value, possibly relative
	Err            error
}

// PromptKind identifies what a confirmation is about
type PromptKind string

const (
	PromptOverwrite PromptKind = "overwrite"
	PromptRedirect  PromptKind = "redirect"
)

// Prompt is a yes/no question put to the user
type Prompt struct {
	Kind    PromptKind
	Message string
	Target  string // file path for overwrite, resolved URL for redirect
}

// UI is the presentation side of a download session
type UI interface {
	// Confirm asks a modal yes/no question
	Confirm(prompt Prompt) bool

	// SetProgress reports progress; total < 0 means unknown
	SetProgress(current, total int64)

	// ShowStatus displays an informational message
	ShowStatus(message string)

	// ShowError displays an error message
	ShowError(message string)

	// SetTriggerEnabled enables or disables the control that starts a download
	SetTriggerEnabled(enabled bool)
}

// WritableFile is an exclusively owned destination file handle
type WritableFile interface {
	io.Writer
	Sync() error
	Close() error
	Name() string
}

// FileSystem is the storage side of a download session
type FileSystem interface {
	MkdirAll(path string) error
	Exists(path string) (bool, error)
	// Create opens path for writing, truncating existing content
	Create(path string) (WritableFile, error)
	Remove(path string) error
}

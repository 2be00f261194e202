package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"

	"github.com/yourusername/httpdl-go/internal/domain"
	"go.uber.org/zap"
)

const defaultChunkSize = 4096

// HTTPTransport implements domain.Transport with net/http.
// Redirects are not followed; they are reported to the sink instead.
type HTTPTransport struct {
	client *http.Client
	config *domain.HTTPConfig
	logger *zap.Logger
}

// NewHTTPTransport creates a transport from the HTTP configuration
func NewHTTPTransport(config *domain.HTTPConfig, logger *zap.Logger) *HTTPTransport {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = (&net.Dialer{Timeout: config.ConnectTimeout}).DialContext
	base.ResponseHeaderTimeout = config.ResponseHeaderTimeout

	return &HTTPTransport{
		client: &http.Client{
			Transport: base,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		config: config,
		logger: logger,
	}
}

// httpTransfer is the handle of one request started by HTTPTransport
type httpTransfer struct {
	wd *watchdog
}

func (t *httpTransfer) Abort() {
	t.wd.Abort()
}

// Get issues a GET request and streams the response to sink from a new goroutine
func (t *HTTPTransport) Get(ctx context.Context, target *url.URL, sink domain.TransferSink) (domain.Transfer, error) {
	wctx, wd := newWatchdog(ctx, t.config.InactivityTimeout)

	req, err := http.NewRequestWithContext(wctx, http.MethodGet, target.String(), nil)
	if err != nil {
		wd.Stop()
		return nil, fmt.Errorf("setting up HTTP request: %w", err)
	}
	if t.config.UserAgent != "" {
		req.Header.Set("User-Agent", t.config.UserAgent)
	}
	for k, v := range t.config.Headers {
		req.Header.Set(k, v)
	}

	go t.run(req, wd, sink)
	return &httpTransfer{wd: wd}, nil
}

func (t *HTTPTransport) run(req *http.Request, wd *watchdog, sink domain.TransferSink) {
	defer wd.Stop()

	if ce := t.logger.Check(zap.DebugLevel, "HTTP request"); ce != nil {
		ce.Write(zap.String("url", req.URL.String()), zap.String("curl", curlCommand(req)))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		sink.OnRequestFinished(domain.TransferResult{Err: t.cause(wd, err)})
		return
	}
	defer resp.Body.Close()
	wd.Kick()

	t.logger.Debug("HTTP response",
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Int64("content_length", resp.ContentLength))

	if isRedirect(resp.StatusCode) {
		if location := resp.Header.Get("Location"); location != "" {
			sink.OnRequestFinished(domain.TransferResult{StatusCode: resp.StatusCode, RedirectTarget: location})
			return
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		t.logger.Warn("HTTP error status",
			zap.Int("status", resp.StatusCode),
			zap.String("curl", curlCommand(req)))
		sink.OnRequestFinished(domain.TransferResult{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("server replied: %s", resp.Status),
		})
		return
	}

	total := resp.ContentLength
	chunkSize := t.config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	buf := make([]byte, chunkSize)

	var received int64
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			wd.Kick()
			received += int64(n)
			sink.OnDataReceived(buf[:n])
			sink.OnProgress(received, total)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			sink.OnRequestFinished(domain.TransferResult{StatusCode: resp.StatusCode, Err: t.cause(wd, err)})
			return
		}
	}

	sink.OnRequestFinished(domain.TransferResult{StatusCode: resp.StatusCode})
}

// cause replaces a context error with the reason the context was cancelled
func (t *HTTPTransport) cause(wd *watchdog, err error) error {
	cause := context.Cause(wd.ctx)
	if cause == nil {
		return err
	}
	if errors.Is(cause, os.ErrDeadlineExceeded) {
		return fmt.Errorf("no data received for %s: %w", t.config.InactivityTimeout, cause)
	}
	return cause
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

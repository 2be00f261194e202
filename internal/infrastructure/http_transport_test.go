package infrastructure

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/httpdl-go/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// recordingSink collects the events of one request
type recordingSink struct {
	mu       sync.Mutex
	data     bytes.Buffer
	chunks   []int
	progress [][2]int64
	result   domain.TransferResult
	done     chan struct{}
	onData   func()
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{})}
}

func (s *recordingSink) OnDataReceived(chunk []byte) {
	s.mu.Lock()
	s.data.Write(chunk)
	s.chunks = append(s.chunks, len(chunk))
	hook := s.onData
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (s *recordingSink) OnProgress(received, total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, [2]int64{received, total})
}

func (s *recordingSink) OnRequestFinished(result domain.TransferResult) {
	s.mu.Lock()
	s.result = result
	s.mu.Unlock()
	close(s.done)
}

func (s *recordingSink) wait(t *testing.T) domain.TransferResult {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("transfer did not finish")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func testHTTPConfig() *domain.HTTPConfig {
	config := domain.DefaultConfig().HTTP
	config.InactivityTimeout = 5 * time.Second
	return &config
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestHTTPTransport_StreamsBody(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789abcdef"), 832)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	}))
	defer server.Close()

	transport := NewHTTPTransport(testHTTPConfig(), nil)
	sink := newRecordingSink()

	transfer, err := transport.Get(context.Background(), mustParse(t, server.URL+"/image.jpg"), sink)
	require.NoError(t, err)
	require.NotNil(t, transfer)

	result := sink.wait(t)
	require.NoError(t, result.Err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Empty(t, result.RedirectTarget)

	assert.Equal(t, body, sink.data.Bytes())
	for _, n := range sink.chunks {
		assert.LessOrEqual(t, n, 4096)
	}
	last := sink.progress[len(sink.progress)-1]
	assert.Equal(t, [2]int64{int64(len(body)), int64(len(body))}, last)
}

func TestHTTPTransport_UnknownLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("part one "))
		w.(http.Flusher).Flush()
		w.Write([]byte("part two"))
	}))
	defer server.Close()

	sink := newRecordingSink()
	_, err := NewHTTPTransport(testHTTPConfig(), nil).Get(context.Background(), mustParse(t, server.URL), sink)
	require.NoError(t, err)

	result := sink.wait(t)
	require.NoError(t, result.Err)
	assert.Equal(t, "part one part two", sink.data.String())
	assert.Equal(t, int64(-1), sink.progress[0][1])
}

func TestHTTPTransport_SendsHeaders(t *testing.T) {
	var userAgent, token string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		token = r.Header.Get("X-Token")
	}))
	defer server.Close()

	config := testHTTPConfig()
	config.UserAgent = "httpdl-test/1.0"
	config.Headers = map[string]string{"X-Token": "secret"}

	sink := newRecordingSink()
	_, err := NewHTTPTransport(config, nil).Get(context.Background(), mustParse(t, server.URL), sink)
	require.NoError(t, err)
	sink.wait(t)

	assert.Equal(t, "httpdl-test/1.0", userAgent)
	assert.Equal(t, "secret", token)
}

func TestHTTPTransport_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	core, logs := observer.New(zap.DebugLevel)
	sink := newRecordingSink()
	_, err := NewHTTPTransport(testHTTPConfig(), zap.New(core)).Get(context.Background(), mustParse(t, server.URL+"/missing"), sink)
	require.NoError(t, err)

	result := sink.wait(t)
	require.Error(t, result.Err)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.Equal(t, "server replied: 404 Not Found", result.Err.Error())
	assert.Zero(t, sink.data.Len())

	warnings := logs.FilterMessage("HTTP error status").All()
	require.Len(t, warnings, 1)
	curl, _ := warnings[0].ContextMap()["curl"].(string)
	assert.Contains(t, curl, "curl -sS -o /dev/null")
	assert.Contains(t, curl, server.URL+"/missing")
	assert.Equal(t, 1, logs.FilterMessage("HTTP request").Len())
}

func TestHTTPTransport_ReportsRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		w.Write([]byte("should not be fetched"))
	}))
	defer server.Close()

	sink := newRecordingSink()
	_, err := NewHTTPTransport(testHTTPConfig(), nil).Get(context.Background(), mustParse(t, server.URL+"/old"), sink)
	require.NoError(t, err)

	result := sink.wait(t)
	require.NoError(t, result.Err)
	assert.Equal(t, http.StatusFound, result.StatusCode)
	assert.Equal(t, "/new", result.RedirectTarget)
	assert.Zero(t, sink.data.Len())
}

func TestHTTPTransport_Abort(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.Write(bytes.Repeat([]byte("x"), 1024))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	sink := newRecordingSink()
	var once sync.Once
	var transfer domain.Transfer
	ready := make(chan struct{})
	sink.onData = func() {
		once.Do(func() {
			<-ready
			transfer.Abort()
			transfer.Abort()
		})
	}

	var err error
	transfer, err = NewHTTPTransport(testHTTPConfig(), nil).Get(context.Background(), mustParse(t, server.URL), sink)
	require.NoError(t, err)
	close(ready)

	result := sink.wait(t)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestHTTPTransport_InactivityTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write([]byte("x"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	config := testHTTPConfig()
	config.InactivityTimeout = 100 * time.Millisecond

	sink := newRecordingSink()
	_, err := NewHTTPTransport(config, nil).Get(context.Background(), mustParse(t, server.URL), sink)
	require.NoError(t, err)

	result := sink.wait(t)
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, os.ErrDeadlineExceeded)
	assert.Contains(t, result.Err.Error(), "no data received for 100ms")
}

func TestHTTPTransport_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	target := mustParse(t, server.URL)
	server.Close()

	sink := newRecordingSink()
	_, err := NewHTTPTransport(testHTTPConfig(), nil).Get(context.Background(), target, sink)
	require.NoError(t, err)

	result := sink.wait(t)
	assert.Error(t, result.Err)
	assert.Zero(t, result.StatusCode)
}

func TestWatchdog_KickKeepsContextAlive(t *testing.T) {
	ctx, wd := newWatchdog(context.Background(), 50*time.Millisecond)
	defer wd.Stop()

	for i := 0; i < 4; i++ {
		time.Sleep(20 * time.Millisecond)
		wd.Kick()
	}
	assert.NoError(t, ctx.Err())

	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), os.ErrDeadlineExceeded)
}

func TestWatchdog_Disabled(t *testing.T) {
	ctx, wd := newWatchdog(context.Background(), 0)
	wd.Kick()
	assert.NoError(t, ctx.Err())

	wd.Abort()
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
}

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/httpdl-go/internal/app"
	"github.com/yourusername/httpdl-go/internal/domain"
	"github.com/yourusername/httpdl-go/internal/infrastructure"
)

func TestAPIClient_DecodesReplies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/downloads/stats":
			w.Write([]byte(`{"total":3,"completed":2,"failed":1}`))
		case "/api/v1/downloads":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":"a download is already in progress"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		}
	}))
	defer server.Close()

	client := newAPIClient(server.URL + "/")

	var stats domain.DownloadStats
	require.NoError(t, client.get("/api/v1/downloads/stats", &stats))
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Completed)

	err := client.post("/api/v1/downloads", map[string]string{"url": "http://example.com/a"}, nil)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "a download is already in progress", apiErr.Message)

	err = client.delete("/other")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestPrintHistoryAndStats(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, []domain.Download{{
		ID:            "0123456789abcdef",
		URL:           "http://example.com/image.jpg",
		Status:        domain.StatusCompleted,
		BytesReceived: 13312,
		CreatedAt:     time.Now(),
	}})
	out := buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "01234...")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "13 kB")

	buf.Reset()
	printStats(&buf, domain.DownloadStats{Total: 2, Completed: 1, Cancelled: 1, BytesReceived: 2048})
	assert.Contains(t, buf.String(), "Cancelled:  1")
	assert.Contains(t, buf.String(), "2.0 kB")
}

func TestPrintCurrent(t *testing.T) {
	var buf bytes.Buffer
	printCurrent(&buf, app.CurrentDownload{})
	assert.Equal(t, "No download yet\n", buf.String())

	buf.Reset()
	printCurrent(&buf, app.CurrentDownload{
		Download: &domain.Download{
			ID:           "abc",
			URL:          "http://a/x",
			FinalURL:     "http://b/x",
			Redirects:    1,
			Status:       domain.StatusFailed,
			ErrorKind:    domain.KindTransfer,
			ErrorMessage: "server replied: 404 Not Found",
		},
		Message: "Download failed: server replied: 404 Not Found.",
		IsError: true,
	})
	out := buf.String()
	assert.Contains(t, out, "http://b/x (1 redirects)")
	assert.Contains(t, out, "server replied: 404 Not Found (transfer)")
	assert.Contains(t, out, "Message:  Download failed")
}

func TestWatchEvents_FollowsSessionToTheEnd(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.WriteJSON(map[string]interface{}{
			"type":    "snapshot",
			"current": app.CurrentDownload{Session: app.SessionState{Active: true}},
		})
		conn.WriteJSON(infrastructure.UIEvent{Type: infrastructure.EventProgress, Current: 50, Total: 100})
		conn.WriteJSON(infrastructure.UIEvent{Type: infrastructure.EventStatus, Message: "Downloaded to /tmp/a.bin."})
		conn.WriteJSON(infrastructure.UIEvent{Type: infrastructure.EventTrigger, Enabled: true})
		conn.ReadMessage()
	}))
	defer server.Close()

	var out bytes.Buffer
	ui := infrastructure.NewTerminalUI(nil, &out, false)
	require.NoError(t, watchEvents(newAPIClient(server.URL), ui, &out))
	assert.Contains(t, out.String(), "50.0%")
	assert.Contains(t, out.String(), "Downloaded to /tmp/a.bin.")
}

func TestWatchEvents_Idle(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		conn.WriteJSON(map[string]interface{}{"type": "snapshot", "current": app.CurrentDownload{}})
		conn.ReadMessage()
	}))
	defer server.Close()

	var out bytes.Buffer
	require.NoError(t, watchEvents(newAPIClient(server.URL), infrastructure.NewTerminalUI(nil, &out, false), &out))
	assert.Equal(t, "No download yet\n", out.String())
}

func localConfig(dir string) *domain.Config {
	config := domain.DefaultConfig()
	config.Download.Dir = dir
	config.History.Enabled = false
	return config
}

func TestRunLocalDownload(t *testing.T) {
	body := strings.Repeat("x", 5000)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	defer origin.Close()

	dir := t.TempDir()
	var out bytes.Buffer
	ui := infrastructure.NewTerminalUI(strings.NewReader(""), &out, false)

	err := runLocalDownload(context.Background(), localConfig(dir), ui, origin.URL+"/data.txt", "", zap.NewNop())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
	assert.Contains(t, out.String(), "Downloaded to "+filepath.Join(dir, "data.txt")+".")

	err = runLocalDownload(context.Background(), localConfig(dir), ui, origin.URL+"/missing", "", zap.NewNop())
	var reported *reportedError
	require.ErrorAs(t, err, &reported)
	assert.True(t, domain.IsKind(err, domain.KindTransfer))
	_, statErr := os.Stat(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(statErr))

	err = runLocalDownload(context.Background(), localConfig(dir), ui, "not a url", "", zap.NewNop())
	assert.True(t, domain.IsKind(err, domain.KindInvalidURL))
}

func TestRunLocalDownload_DeclinedOverwriteKeepsFile(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("new"))
	}))
	defer origin.Close()

	dir := t.TempDir()
	existing := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0644))

	var out bytes.Buffer
	ui := infrastructure.NewTerminalUI(strings.NewReader("n\n"), &out, false)
	err := runLocalDownload(context.Background(), localConfig(dir), ui, origin.URL+"/a.txt", "", zap.NewNop())
	assert.True(t, domain.IsKind(err, domain.KindCanceled))

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
	assert.Contains(t, out.String(), "Overwrite?")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	var out bytes.Buffer
	configInitCmd.SetOut(&out)

	require.NoError(t, configInitCmd.RunE(configInitCmd, []string{path}))
	assert.Contains(t, out.String(), "Wrote "+path)

	config, err := app.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyNever, config.Download.Overwrite)

	assert.Error(t, configInitCmd.RunE(configInitCmd, []string{path}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 8))
	assert.Equal(t, "12345...", truncate("1234567890", 8))
	assert.Equal(t, "http://é...", truncate("http://éèêë/a.bin", 11))
}

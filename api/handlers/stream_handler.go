package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yourusername/httpdl-go/internal/app"
	"github.com/yourusername/httpdl-go/internal/infrastructure"
	"github.com/yourusername/httpdl-go/pkg/logger"
	"go.uber.org/zap"
)

const (
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
	initialLogTail = 50
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SnapshotMessage is the first message of a download event stream
type SnapshotMessage struct {
	Type    string              `json:"type"`
	Current app.CurrentDownload `json:"current"`
}

// StreamHandler streams session events and log entries over WebSocket
type StreamHandler struct {
	downloadMgr *app.DownloadManager
	ui          *infrastructure.HeadlessUI
	logReader   *logger.LogReader
	logger      *zap.Logger
}

// NewStreamHandler creates a new WebSocket handler
func NewStreamHandler(downloadMgr *app.DownloadManager, ui *infrastructure.HeadlessUI, logsDir string, log *zap.Logger) *StreamHandler {
	return &StreamHandler{
		downloadMgr: downloadMgr,
		ui:          ui,
		logReader:   logger.NewLogReader(logsDir),
		logger:      log,
	}
}

// DownloadEvents handles GET /api/v1/downloads/current/events.
// It sends a snapshot of the current download, then every UI event.
func (h *StreamHandler) DownloadEvents(c *gin.Context) {
	events, unsubscribe := h.ui.Subscribe()
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("Event stream client connected", zap.String("remote_addr", c.Request.RemoteAddr))

	if err := writeJSON(conn, SnapshotMessage{Type: "snapshot", Current: h.downloadMgr.Current()}); err != nil {
		return
	}

	done := readUntilClosed(conn)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeJSON(conn, event); err != nil {
				h.logger.Debug("Failed to send event", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := ping(conn); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// LogStream handles GET /api/v1/logs/:category/stream.
// It sends the last entries of today's file, then every appended entry.
func (h *StreamHandler) LogStream(c *gin.Context) {
	name := c.Param("category")
	if !logger.ValidCategory(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return
	}
	category := logger.LogCategory(name)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("Log stream client connected",
		zap.String("category", name),
		zap.String("remote_addr", c.Request.RemoteAddr))

	offset := logger.TailFromEnd
	if entries, end, err := h.logReader.ReadLogsWithOffset(category, time.Now(), initialLogTail); err == nil {
		offset = end
		for _, entry := range entries {
			if err := writeJSON(conn, entry); err != nil {
				return
			}
		}
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	entries := make(chan logger.LogEntry, 100)
	go func() {
		if err := h.logReader.TailLogs(ctx, category, offset, entries); err != nil {
			h.logger.Error("Log tailing error", zap.Error(err))
		}
	}()

	done := readUntilClosed(conn)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-entries:
			if err := writeJSON(conn, entry); err != nil {
				h.logger.Debug("Failed to send log entry", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := ping(conn); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readUntilClosed drains client messages and closes the returned channel
// when the connection goes away
func readUntilClosed(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

func ping(conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

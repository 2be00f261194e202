package logger

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMultiLogger(t *testing.T) (*MultiLogger, string) {
	t.Helper()
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { ml.Close() })
	return ml, dir
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(Config{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("hello", zap.String("url", "http://example.com"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"url":"http://example.com"`)
}

func TestNewMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{})
	assert.Error(t, err)
}

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	ml, dir := setupMultiLogger(t)

	ml.LogSessionEvent("Download started", zap.String("url", "http://example.com/a.bin"))
	ml.LogAppError("Failed to save download history", zap.Error(errors.New("disk I/O error")))
	ml.Error().Info("below error level")
	require.NoError(t, ml.Sync())

	reader := NewLogReader(dir)
	sessions, err := reader.ReadLogs(CategorySession, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Download started", sessions[0].Message)
	assert.Equal(t, "info", sessions[0].Level)
	assert.Equal(t, "session", sessions[0].Category)
	assert.Equal(t, "http://example.com/a.bin", sessions[0].Fields["url"])
	assert.NotEmpty(t, sessions[0].Timestamp)

	errs, err := reader.ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "disk I/O error", errs[0].Fields["error"])
}

func TestNewWithCategories_CopiesErrors(t *testing.T) {
	ml, dir := setupMultiLogger(t)
	log, err := NewWithCategories(Config{Level: "info", Format: "json", OutputPath: filepath.Join(t.TempDir(), "main.log")}, ml)
	require.NoError(t, err)

	log.Info("not copied")
	log.Error("Download failed", zap.String("id", "abc"))
	require.NoError(t, log.Sync())

	entries, err := NewLogReader(dir).ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Download failed", entries[0].Message)
}

func TestMultiLogger_WithCategory(t *testing.T) {
	ml, dir := setupMultiLogger(t)
	mainPath := filepath.Join(t.TempDir(), "main.log")
	main, err := New(Config{Level: "info", Format: "json", OutputPath: mainPath})
	require.NoError(t, err)

	log := ml.WithCategory(main, CategorySession)
	log.Info("Download finished", zap.Int64("bytes", 42))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Download finished")

	entries, err := NewLogReader(dir).ReadLogs(CategorySession, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(42), entries[0].Fields["bytes"])
}

func TestLogReader_LimitAndSearch(t *testing.T) {
	ml, dir := setupMultiLogger(t)
	for _, url := range []string{"http://a/1", "http://b/2", "http://a/3"} {
		ml.LogSessionEvent("Download finished", zap.String("url", url))
	}
	require.NoError(t, ml.Sync())

	reader := NewLogReader(dir)
	last, err := reader.ReadLogs(CategorySession, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "http://a/3", last[1].Fields["url"])

	found, err := reader.SearchLogs(CategorySession, time.Now(), "HTTP://A", 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	limited, err := reader.SearchLogs(CategorySession, time.Now(), "finished", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLogReader_MissingFile(t *testing.T) {
	reader := NewLogReader(t.TempDir())

	entries, err := reader.ReadLogs(CategorySession, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Error(t, reader.ExportLogs(CategorySession, time.Now(), &bytes.Buffer{}))
}

func TestLogReader_PlainLine(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)
	require.NoError(t, os.WriteFile(reader.GetLogPath(CategoryError, time.Now()), []byte("not json\n"), 0644))

	entries, err := reader.ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "not json", entries[0].Message)

	var buf bytes.Buffer
	require.NoError(t, reader.ExportLogs(CategoryError, time.Now(), &buf))
	assert.Equal(t, "not json\n", buf.String())
}

func TestLogReader_TailLogs(t *testing.T) {
	ml, dir := setupMultiLogger(t)
	ml.LogSessionEvent("before tail")
	require.NoError(t, ml.Sync())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- NewLogReader(dir).TailLogs(ctx, CategorySession, TailFromEnd, entries) }()

	// Give the tail time to seek to the end
	time.Sleep(300 * time.Millisecond)
	ml.LogSessionEvent("after tail")

	select {
	case entry := <-entries:
		assert.Equal(t, "after tail", entry.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("no entry tailed")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestLogReader_TailContinuesAfterRead(t *testing.T) {
	ml, dir := setupMultiLogger(t)
	ml.LogSessionEvent("first")
	ml.LogSessionEvent("second")
	require.NoError(t, ml.Sync())

	reader := NewLogReader(dir)
	initial, offset, err := reader.ReadLogsWithOffset(CategorySession, time.Now(), 1)
	require.NoError(t, err)
	require.Len(t, initial, 1)
	assert.Equal(t, "second", initial[0].Message)

	ml.LogSessionEvent("between read and tail")
	require.NoError(t, ml.Sync())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- reader.TailLogs(ctx, CategorySession, offset, entries) }()

	select {
	case entry := <-entries:
		assert.Equal(t, "between read and tail", entry.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("entry written before the tail started was lost")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestLogReader_MissingFileOffset(t *testing.T) {
	entries, offset, err := NewLogReader(t.TempDir()).ReadLogsWithOffset(CategoryError, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, offset)
}

func TestDailyFile_RotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	file := &dailyFile{dir: dir, category: CategorySession, now: func() time.Time { return day }}
	defer file.Close()

	_, err := file.Write([]byte("first\n"))
	require.NoError(t, err)
	day = day.Add(2 * time.Minute)
	_, err = file.Write([]byte("second\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "session-20240301.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(first))

	second, err := os.ReadFile(filepath.Join(dir, "session-20240302.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(second))
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory("session"))
	assert.True(t, ValidCategory("error"))
	assert.False(t, ValidCategory("queue"))
}

package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AppName names the default download folder and config directories
const AppName = "httpdl"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	History      HistoryConfig      `mapstructure:"history"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Confirmation policies used when nobody can answer a prompt
const (
	PolicyAlways = "always"
	PolicyNever  = "never"
)

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	Dir             string `mapstructure:"dir"`
	Overwrite       string `mapstructure:"overwrite"`        // always, never
	FollowRedirects string `mapstructure:"follow_redirects"` // always, never
}

// HTTPConfig contains transport configuration
type HTTPConfig struct {
	UserAgent             string            `mapstructure:"user_agent"`
	Headers               map[string]string `mapstructure:"headers"`
	ChunkSize             int               `mapstructure:"chunk_size"`
	ConnectTimeout        time.Duration     `mapstructure:"connect_timeout"`
	ResponseHeaderTimeout time.Duration     `mapstructure:"response_header_timeout"`
	InactivityTimeout     time.Duration     `mapstructure:"inactivity_timeout"`
}

// HistoryConfig contains download history configuration
type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`    // category log files, empty disables them
}

// DefaultDownloadDir returns the application folder inside the platform temp directory
func DefaultDownloadDir() string {
	return filepath.Join(os.TempDir(), AppName)
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Download: DownloadConfig{
			Dir:             DefaultDownloadDir(),
			Overwrite:       PolicyNever,
			FollowRedirects: PolicyAlways,
		},
		HTTP: HTTPConfig{
			UserAgent:             AppName + "/1.0",
			Headers:               map[string]string{},
			ChunkSize:             4096,
			ConnectTimeout:        30 * time.Second,
			ResponseHeaderTimeout: time.Minute,
			InactivityTimeout:     2 * time.Minute,
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "$HOME/.httpdl/history.db",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
			LogsDir:    "$HOME/.httpdl/logs",
		},
	}
}

// Address returns the server listen address
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/yourusername/httpdl-go/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/." + domain.AppName)
		v.AddConfigPath("/etc/" + domain.AppName)
	}

	// Defaults make every key visible to AutomaticEnv
	for key, value := range configValues(config) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("HTTPDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// configValues flattens config into viper keys
func configValues(config *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host":                  config.Server.Host,
		"server.port":                  config.Server.Port,
		"download.dir":                 config.Download.Dir,
		"download.overwrite":           config.Download.Overwrite,
		"download.follow_redirects":    config.Download.FollowRedirects,
		"http.user_agent":              config.HTTP.UserAgent,
		"http.headers":                 config.HTTP.Headers,
		"http.chunk_size":              config.HTTP.ChunkSize,
		"http.connect_timeout":         config.HTTP.ConnectTimeout.String(),
		"http.response_header_timeout": config.HTTP.ResponseHeaderTimeout.String(),
		"http.inactivity_timeout":      config.HTTP.InactivityTimeout.String(),
		"history.enabled":              config.History.Enabled,
		"history.database_path":        config.History.DatabasePath,
		"notification.enabled":         config.Notification.Enabled,
		"notification.method":          config.Notification.Method,
		"logging.level":                config.Logging.Level,
		"logging.format":               config.Logging.Format,
		"logging.output_path":          config.Logging.OutputPath,
		"logging.logs_dir":             config.Logging.LogsDir,
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.Dir = expandPath(config.Download.Dir)
	config.History.DatabasePath = expandPath(config.History.DatabasePath)
	config.Logging.LogsDir = expandPath(config.Logging.LogsDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.Dir == "" {
		return fmt.Errorf("download directory not configured")
	}

	if !isPolicy(config.Download.Overwrite) {
		return fmt.Errorf("download.overwrite must be %q or %q, got %q", domain.PolicyAlways, domain.PolicyNever, config.Download.Overwrite)
	}

	if !isPolicy(config.Download.FollowRedirects) {
		return fmt.Errorf("download.follow_redirects must be %q or %q, got %q", domain.PolicyAlways, domain.PolicyNever, config.Download.FollowRedirects)
	}

	if config.HTTP.ChunkSize < 1 {
		return fmt.Errorf("http chunk size must be positive")
	}

	if config.HTTP.ConnectTimeout < 0 || config.HTTP.ResponseHeaderTimeout < 0 || config.HTTP.InactivityTimeout < 0 {
		return fmt.Errorf("http timeouts cannot be negative")
	}

	if config.History.Enabled && config.History.DatabasePath == "" {
		return fmt.Errorf("history database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

func isPolicy(value string) bool {
	return value == domain.PolicyAlways || value == domain.PolicyNever
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

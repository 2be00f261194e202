package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/httpdl-go/internal/app"
	"github.com/yourusername/httpdl-go/internal/domain"
)

const serverBinary = "httpdl-server"

const (
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

// launcher makes sure an httpdl-server answers at baseURL, starting one
// in the background when nothing does
type launcher struct {
	baseURL      string
	client       *http.Client
	spawn        func() error
	startTimeout time.Duration
	pollInterval time.Duration
	out          io.Writer
}

func newLauncher(baseURL, configPath string, out io.Writer) *launcher {
	return &launcher{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: time.Second},
		spawn:        func() error { return spawnServer(configPath) },
		startTimeout: serverStartTimeout,
		pollInterval: serverPollInterval,
		out:          out,
	}
}

// healthy reports whether the server answers its health check
func (l *launcher) healthy() bool {
	resp, err := l.client.Get(l.baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// waitReady polls the health check until it succeeds or startTimeout passes
func (l *launcher) waitReady() error {
	deadline := time.After(l.startTimeout)
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		if l.healthy() {
			return nil
		}
		select {
		case <-deadline:
			return fmt.Errorf("server at %s did not start within %v", l.baseURL, l.startTimeout)
		case <-ticker.C:
		}
	}
}

func (l *launcher) ensure() error {
	if l.healthy() {
		return nil
	}

	fmt.Fprintf(l.out, "No server at %s, starting %s...\n", l.baseURL, serverBinary)
	if err := l.spawn(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	if err := l.waitReady(); err != nil {
		return err
	}
	fmt.Fprintln(l.out, "Server started")
	return nil
}

// resolveServerURL returns flagURL when set, otherwise the address the
// configured server listens on
func resolveServerURL(flagURL, configPath string) (string, error) {
	if flagURL != "" {
		return flagURL, nil
	}
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return "", err
	}
	return serverURLFromConfig(config.Server), nil
}

func serverURLFromConfig(c domain.ServerConfig) string {
	host := c.Host
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// locateServerBinary looks next to this executable, then in PATH, then in
// the usual install directories
func locateServerBinary() (string, error) {
	var candidates []string
	if self, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(self), serverBinary))
	}
	if found, err := exec.LookPath(serverBinary); err == nil {
		candidates = append(candidates, found)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, "go", "bin", serverBinary),
			filepath.Join(home, ".local", "bin", serverBinary))
	}
	candidates = append(candidates, filepath.Join("/usr/local/bin", serverBinary))

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s binary not found", serverBinary)
}

// spawnServer starts httpdl-server detached from this process
func spawnServer(configPath string) error {
	path, err := locateServerBinary()
	if err != nil {
		return err
	}

	var args []string
	if configPath != "" {
		args = append(args, "-config", configPath)
	}
	cmd := exec.Command(path, args...)
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Environment variable names recognized by Load.
const (
	EnvPortRangeStart = "OFS_PORT_RANGE_START"
	EnvPortRangeEnd   = "OFS_PORT_RANGE_END"
	EnvBindIP         = "OFS_BIND_IP"
	EnvSessionTimeout = "OFS_SESSION_TIMEOUT"
	EnvConnectTimeout = "OFS_CONNECT_TIMEOUT"
	EnvMaxRetries     = "OFS_MAX_RETRIES"
	EnvRetryDelay     = "OFS_RETRY_DELAY"
	EnvDownloadDir    = "OFS_DOWNLOAD_DIR"
)

// Config carries the tunable settings of the transfer core.
type Config struct {
	// PortRangeStart and PortRangeEnd bound the server port probe.
	PortRangeStart int
	PortRangeEnd   int
	// BindIP, when non-empty, overrides interface discovery. Useful for
	// loopback testing and machines with unusual interface naming.
	BindIP string
	// SessionTimeout is the transfer session lifetime.
	SessionTimeout time.Duration
	// ConnectTimeout bounds reachability checks and HTTP connects.
	ConnectTimeout time.Duration
	// MaxRetries and RetryDelay drive the client's retry loop.
	MaxRetries int
	RetryDelay time.Duration
	// DownloadDir is where received files land when the caller supplies no
	// explicit path. Empty means the platform default.
	DownloadDir string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		PortRangeStart: 8080,
		PortRangeEnd:   8090,
		SessionTimeout: time.Hour,
		ConnectTimeout: 30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		DownloadDir:    defaultDownloadDir(),
	}
}

// Load reads an optional .env file, then applies environment overrides on
// top of Default. A missing .env is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	var err error

	if cfg.PortRangeStart, err = intEnv(EnvPortRangeStart, cfg.PortRangeStart); err != nil {
		return Config{}, err
	}
	if cfg.PortRangeEnd, err = intEnv(EnvPortRangeEnd, cfg.PortRangeEnd); err != nil {
		return Config{}, err
	}
	if cfg.MaxRetries, err = intEnv(EnvMaxRetries, cfg.MaxRetries); err != nil {
		return Config{}, err
	}
	if cfg.SessionTimeout, err = durationEnv(EnvSessionTimeout, cfg.SessionTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ConnectTimeout, err = durationEnv(EnvConnectTimeout, cfg.ConnectTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RetryDelay, err = durationEnv(EnvRetryDelay, cfg.RetryDelay); err != nil {
		return Config{}, err
	}
	if v := os.Getenv(EnvBindIP); v != "" {
		cfg.BindIP = v
	}
	if v := os.Getenv(EnvDownloadDir); v != "" {
		cfg.DownloadDir = v
	}

	if cfg.PortRangeStart <= 0 || cfg.PortRangeEnd < cfg.PortRangeStart {
		return Config{}, fmt.Errorf("invalid port range %d-%d", cfg.PortRangeStart, cfg.PortRangeEnd)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Load",
		"portRange": fmt.Sprintf("%d-%d", cfg.PortRangeStart, cfg.PortRangeEnd),
		"timeout":   cfg.SessionTimeout,
	}).Debug("Configuration loaded")

	return cfg, nil
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return d, nil
}

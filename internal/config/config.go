package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Scanner contains scan input tuning.
type Scanner struct {
	// WedgeGuardMS suppresses duplicate tokens from keystroke-wedge double
	// injection. Milliseconds.
	WedgeGuardMS int `toml:"wedge_guard_ms"`
	// CameraGuardMS suppresses re-emission of the same decode while a
	// barcode stays in the camera frame. Milliseconds.
	CameraGuardMS int `toml:"camera_guard_ms"`
	// WedgeDevice is the udev device path of the HID wedge scanner.
	// Empty disables the hotplug monitor.
	WedgeDevice string `toml:"wedge_device"`
	// CameraDevice is a line-oriented stream of decoded barcodes, one
	// token per line, typically a FIFO fed by a camera decoder. Empty
	// disables the camera pump.
	CameraDevice string `toml:"camera_device"`
	// WedgeIdleFlushMS flushes a partially aggregated wedge token after
	// this idle gap. Milliseconds.
	WedgeIdleFlushMS int `toml:"wedge_idle_flush_ms"`
	// ManifestPrefix is the code prefix that classifies a token as a
	// manifest reference.
	ManifestPrefix string `toml:"manifest_prefix"`
}

// OfflineQueue contains replay policy for scans captured without connectivity.
type OfflineQueue struct {
	// MaxAttempts moves an entry to the failed set after this many replay
	// failures. Zero or negative disables the cap.
	MaxAttempts int `toml:"max_attempts"`
}

// Feedback contains audio cue configuration.
type Feedback struct {
	Enabled bool `toml:"enabled"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Misroutes      bool   `toml:"misroutes"`
	OfflineReplay  bool   `toml:"offline_replay"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for crossdock.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Scanner       Scanner       `toml:"scanner"`
	OfflineQueue  OfflineQueue  `toml:"offline_queue"`
	Feedback      Feedback      `toml:"feedback"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/crossdock/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("crossdock.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "crossdockd.sock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "crossdock.log")
}

// WedgeGuard returns the wedge debounce window as a duration.
func (c *Config) WedgeGuard() time.Duration {
	return time.Duration(c.Scanner.WedgeGuardMS) * time.Millisecond
}

// CameraGuard returns the camera debounce window as a duration.
func (c *Config) CameraGuard() time.Duration {
	return time.Duration(c.Scanner.CameraGuardMS) * time.Millisecond
}

// WedgeIdleFlush returns the wedge aggregator idle gap as a duration.
func (c *Config) WedgeIdleFlush() time.Duration {
	return time.Duration(c.Scanner.WedgeIdleFlushMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

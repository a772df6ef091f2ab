package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScanner()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScanner() {
	// Zero is a valid guard value meaning "window disabled"; only
	// negatives fall back to the defaults.
	if c.Scanner.WedgeGuardMS < 0 {
		c.Scanner.WedgeGuardMS = defaultWedgeGuardMS
	}
	if c.Scanner.CameraGuardMS < 0 {
		c.Scanner.CameraGuardMS = defaultCameraGuardMS
	}
	if c.Scanner.WedgeIdleFlushMS <= 0 {
		c.Scanner.WedgeIdleFlushMS = defaultWedgeIdleFlushMS
	}
	c.Scanner.WedgeDevice = strings.TrimSpace(c.Scanner.WedgeDevice)
	c.Scanner.CameraDevice = strings.TrimSpace(c.Scanner.CameraDevice)
	c.Scanner.ManifestPrefix = strings.ToUpper(strings.TrimSpace(c.Scanner.ManifestPrefix))
	if c.Scanner.ManifestPrefix == "" {
		c.Scanner.ManifestPrefix = defaultManifestPrefix
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

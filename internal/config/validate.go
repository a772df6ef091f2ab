package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScanner() error {
	if c.Scanner.WedgeGuardMS > 0 && c.Scanner.CameraGuardMS > 0 &&
		c.Scanner.WedgeGuardMS >= c.Scanner.CameraGuardMS {
		return fmt.Errorf(
			"scanner.wedge_guard_ms (%d) must be shorter than scanner.camera_guard_ms (%d)",
			c.Scanner.WedgeGuardMS, c.Scanner.CameraGuardMS,
		)
	}
	if strings.ContainsAny(c.Scanner.ManifestPrefix, " \t") {
		return errors.New("scanner.manifest_prefix must not contain whitespace")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

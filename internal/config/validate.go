package config

import (
	"errors"
	"fmt"
)

// MAX_READ_BLOCKS is the largest transfer length a READ(10) can carry.
const MAX_READ_BLOCKS = 65535

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.ReadBlocks < 1 || c.ReadBlocks > MAX_READ_BLOCKS {
		return fmt.Errorf("read_blocks must be between 1 and %d, got %d", MAX_READ_BLOCKS, c.ReadBlocks)
	}
	if c.TimeoutSeconds <= 0 {
		return errors.New("timeout_seconds must be positive")
	}
	if c.ReadyRetryDelayMS <= 0 {
		return errors.New("ready_retry_delay_ms must be positive")
	}
	switch c.Color {
	case COLOR_AUTO, COLOR_ALWAYS, COLOR_NEVER:
	default:
		return fmt.Errorf("color must be one of %s, %s or %s, got %q", COLOR_AUTO, COLOR_ALWAYS, COLOR_NEVER, c.Color)
	}
	return nil
}

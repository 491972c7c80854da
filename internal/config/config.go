package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bgrewell/readiso/pkg/consts"
	"github.com/bgrewell/readiso/pkg/option"
	"github.com/pelletier/go-toml/v2"
)

const (
	// ENV_CONFIG names the environment variable that points at the configuration file.
	ENV_CONFIG = "READISO_CONFIG"

	DEFAULT_CONFIG_PATH = "~/.config/readiso/config.toml"

	COLOR_AUTO   = "auto"
	COLOR_ALWAYS = "always"
	COLOR_NEVER  = "never"
)

// Config holds the settings that can be given in the configuration file. Command line flags override them.
type Config struct {
	Device            string `toml:"device"`
	ReadBlocks        int    `toml:"read_blocks"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	ReadyRetryDelayMS int    `toml:"ready_retry_delay_ms"`
	LockDir           string `toml:"lock_dir"`
	Color             string `toml:"color"`
	Progress          bool   `toml:"progress"`
}

// Default returns the built in configuration.
func Default() Config {
	return Config{
		Device:            consts.DEFAULT_DEVICE,
		ReadBlocks:        consts.DEFAULT_READ_BLOCKS,
		TimeoutSeconds:    int(consts.DEFAULT_TIMEOUT / time.Second),
		ReadyRetryDelayMS: int(consts.DEFAULT_READY_DELAY / time.Millisecond),
		LockDir:           filepath.Join(os.TempDir(), "readiso"),
		Color:             COLOR_AUTO,
		Progress:          true,
	}
}

// Load reads the configuration file at path. An empty path falls back to $READISO_CONFIG and then to the default
// location. A missing file is not an error; the defaults are returned together with the path that was tried.
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
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
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
	if path == "" {
		path = os.Getenv(ENV_CONFIG)
	}
	if path == "" {
		path = DEFAULT_CONFIG_PATH
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config %s is a directory", expanded)
	}
	return expanded, true, nil
}

func (c *Config) normalize() error {
	var err error
	c.Device = strings.TrimSpace(c.Device)
	if c.Device == "" {
		c.Device = consts.DEFAULT_DEVICE
	}
	if c.LockDir, err = expandPath(strings.TrimSpace(c.LockDir)); err != nil {
		return fmt.Errorf("lock_dir: %w", err)
	}
	c.Color = strings.ToLower(strings.TrimSpace(c.Color))
	if c.Color == "" {
		c.Color = COLOR_AUTO
	}
	return nil
}

// Timeout is the per-command transport timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ReadyDelay is the pause before TEST UNIT READY is retried.
func (c *Config) ReadyDelay() time.Duration {
	return time.Duration(c.ReadyRetryDelayMS) * time.Millisecond
}

// UseColor resolves the color setting against whether the output is a terminal.
func (c *Config) UseColor(terminal bool) bool {
	switch c.Color {
	case COLOR_ALWAYS:
		return true
	case COLOR_NEVER:
		return false
	default:
		return terminal
	}
}

// OpenOptions converts the configuration into session options.
func (c *Config) OpenOptions() []option.OpenOption {
	return []option.OpenOption{
		option.WithTimeout(c.Timeout()),
		option.WithReadyDelay(c.ReadyDelay()),
		option.WithReadBlocks(c.ReadBlocks),
		option.WithLockDir(c.LockDir),
	}
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
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
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

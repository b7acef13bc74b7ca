package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cita-toolkit/citactl/internal/parse"
)

// GlobalFlags carries the raw persistent flag values before layering.
type GlobalFlags struct {
	ConfigPath     string
	URL            string
	Debug          bool
	NoColor        bool
	Encryption     string
	Timeout        string
	Retries        int
	EnableCommands string
}

// Settings is the effective configuration after merging defaults, the config
// file, environment variables, and flags, in that order.
type Settings struct {
	URL             string
	Debug           bool
	Color           bool
	Encryption      parse.Scheme
	Timeout         time.Duration
	Retries         int
	EnableCommands  []string
	HistoryPath     string
	HistoryLockPath string
}

type fileConfig struct {
	URL        string `yaml:"url"`
	Debug      *bool  `yaml:"debug"`
	Color      *bool  `yaml:"color"`
	Encryption string `yaml:"encryption"`
	Timeout    string `yaml:"timeout"`
	Retries    *int   `yaml:"retries"`
	History    struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"history"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	historyPath, lockPath, err := defaultHistoryPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		URL:             "http://127.0.0.1:1337",
		Color:           true,
		Encryption:      parse.SchemeSecp256k1,
		Timeout:         10 * time.Second,
		Retries:         2,
		HistoryPath:     historyPath,
		HistoryLockPath: lockPath,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "citactl", "config.yaml"), nil
}

func defaultHistoryPaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "citactl")
	return filepath.Join(dir, "history.db"), filepath.Join(dir, "history.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.URL != "" {
		settings.URL = cfg.URL
	}
	if cfg.Debug != nil {
		settings.Debug = *cfg.Debug
	}
	if cfg.Color != nil {
		settings.Color = *cfg.Color
	}
	if cfg.Encryption != "" {
		scheme, err := parse.ParseScheme(cfg.Encryption)
		if err != nil {
			return fmt.Errorf("config encryption: %w", err)
		}
		settings.Encryption = scheme
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.History.Path != "" {
		settings.HistoryPath = cfg.History.Path
	}
	if cfg.History.LockPath != "" {
		settings.HistoryLockPath = cfg.History.LockPath
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("CITACTL_URL"); v != "" {
		settings.URL = v
	}
	if v := os.Getenv("CITACTL_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Debug = b
		}
	}
	if v := os.Getenv("CITACTL_COLOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Color = b
		}
	}
	if v := os.Getenv("CITACTL_ENCRYPTION"); v != "" {
		if scheme, err := parse.ParseScheme(v); err == nil {
			settings.Encryption = scheme
		}
	}
	if v := os.Getenv("CITACTL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("CITACTL_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("CITACTL_HISTORY_PATH"); v != "" {
		settings.HistoryPath = v
	}
	if v := os.Getenv("CITACTL_HISTORY_LOCK_PATH"); v != "" {
		settings.HistoryLockPath = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if strings.TrimSpace(flags.URL) != "" {
		settings.URL = flags.URL
	}
	if flags.Debug {
		settings.Debug = true
	}
	if flags.NoColor {
		settings.Color = false
	}
	if flags.Encryption != "" {
		scheme, err := parse.ParseScheme(flags.Encryption)
		if err != nil {
			return fmt.Errorf("parse --encryption: %w", err)
		}
		settings.Encryption = scheme
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}

	if strings.TrimSpace(flags.EnableCommands) != "" {
		parts := strings.Split(flags.EnableCommands, ",")
		allowed := make([]string, 0, len(parts))
		for _, part := range parts {
			v := strings.TrimSpace(part)
			if v != "" {
				allowed = append(allowed, v)
			}
		}
		settings.EnableCommands = allowed
	}

	return nil
}

// File: internal/config/config.go

// Package config loads and validates application configuration from a YAML
// file plus CHROMEHAND_* environment variables, with sane defaults for
// driving a local browser.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration, one sub-struct per concern.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Browser BrowserConfig `mapstructure:"browser"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// LoggerConfig controls the zap setup in internal/observability.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name"`
	AddSource   bool   `mapstructure:"add_source"`

	// File sink, rotated by lumberjack. Empty LogFile disables it.
	LogFile    string `mapstructure:"log_file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// BrowserConfig describes how the browser process is spawned and supervised.
type BrowserConfig struct {
	// Path to the browser binary. Empty means probe the usual locations.
	Path string `mapstructure:"path"`

	// Port is the fixed remote-debugging port. Only one browser process may
	// bind it at a time; the manager owns it exclusively.
	Port int `mapstructure:"port"`

	Headless bool `mapstructure:"headless"`

	// KillExisting force-kills same-named browser processes before spawning,
	// best-effort, to avoid contention on the debugging port.
	KillExisting bool `mapstructure:"kill_existing"`

	// WaitReady polls the debug endpoint after spawn until the browser is
	// interactively ready, not just listening.
	WaitReady bool `mapstructure:"wait_ready"`

	NoSandbox bool     `mapstructure:"no_sandbox"`
	ExtraArgs []string `mapstructure:"extra_args"`

	// CommandsPerSecond rate-limits protocol commands per channel.
	// Zero disables throttling.
	CommandsPerSecond float64 `mapstructure:"commands_per_second"`
}

// RetryConfig supplies the retry policies used at the three retry seams.
type RetryConfig struct {
	// Do is the crash-recovery policy wrapped around manager actions.
	DoAttempts int           `mapstructure:"do_attempts"`
	DoDelay    time.Duration `mapstructure:"do_delay"`

	// Ready is the policy for the post-spawn readiness poll.
	ReadyAttempts int           `mapstructure:"ready_attempts"`
	ReadyDelay    time.Duration `mapstructure:"ready_delay"`

	// UI is the policy for page-state polls in the action library.
	UIAttempts int           `mapstructure:"ui_attempts"`
	UIDelay    time.Duration `mapstructure:"ui_delay"`
}

// DefaultDebugPort is the conventional Chromium remote-debugging port.
const DefaultDebugPort = 9222

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "chromehand")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 14)

	v.SetDefault("browser.port", DefaultDebugPort)
	v.SetDefault("browser.kill_existing", true)
	v.SetDefault("browser.wait_ready", true)
	v.SetDefault("browser.no_sandbox", true)

	v.SetDefault("retry.do_attempts", 3)
	v.SetDefault("retry.do_delay", 500*time.Millisecond)
	v.SetDefault("retry.ready_attempts", 10)
	v.SetDefault("retry.ready_delay", time.Second)
	v.SetDefault("retry.ui_attempts", 5)
	v.SetDefault("retry.ui_delay", 4*time.Second)
}

// Load reads configuration from cfgFile (or ./config.yaml when empty) and
// the environment, returning the merged, validated Config. A missing config
// file is fine; defaults and env vars carry the day.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CHROMEHAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicitly named file must exist; the default search may miss.
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the driver layer cannot honor.
func (c *Config) Validate() error {
	if c.Browser.Port < 1 || c.Browser.Port > 65535 {
		return fmt.Errorf("browser.port %d is out of range", c.Browser.Port)
	}
	if c.Retry.DoAttempts < 1 || c.Retry.ReadyAttempts < 1 || c.Retry.UIAttempts < 1 {
		return errors.New("retry attempt counts must be at least 1")
	}
	if c.Retry.DoDelay < 0 || c.Retry.ReadyDelay < 0 || c.Retry.UIDelay < 0 {
		return errors.New("retry delays must not be negative")
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format %q is not supported", c.Logger.Format)
	}
	return nil
}

// Package config loads Heads-Up configuration from ~/.headsup/config.yaml
// with HEADSUP_* environment overrides, following the usual viper layering:
// defaults, then file, then environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/normanking/headsup/internal/engine"
	"github.com/normanking/headsup/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	// Subject is the default business/user the CLI operates on.
	Subject string `mapstructure:"subject" yaml:"subject"`

	// DataDir is where the SQLite store and logs live.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	Engine    engine.Config   `mapstructure:"engine" yaml:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Speech    SpeechConfig    `mapstructure:"speech" yaml:"speech"`
	Logging   logging.Config  `mapstructure:"logging" yaml:"logging"`
}

// SchedulerConfig controls the evaluation timer.
type SchedulerConfig struct {
	// Interval is the period between evaluation cycles.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// SpeechConfig selects and configures the output channel.
type SpeechConfig struct {
	// Channel is "console" or "push".
	Channel string `mapstructure:"channel" yaml:"channel"`

	// PushURL is the websocket endpoint for the push channel.
	PushURL string `mapstructure:"push_url" yaml:"push_url,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Subject: "default",
		DataDir: filepath.Join(home, ".headsup"),
		Engine:  engine.DefaultConfig(),
		Scheduler: SchedulerConfig{
			Interval: time.Minute,
		},
		Speech: SpeechConfig{
			Channel: "console",
			PushURL: "ws://127.0.0.1:8765/ws/notify",
		},
		Logging: logging.DefaultConfig(),
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".headsup", "config.yaml")
}

// Load reads configuration from path (or the default location when path is
// empty). A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigFile(DefaultPath())
	}

	v.SetEnvPrefix("HEADSUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("subject", cfg.Subject)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("scheduler.interval", cfg.Scheduler.Interval)
	v.SetDefault("speech.channel", cfg.Speech.Channel)
	v.SetDefault("speech.push_url", cfg.Speech.PushURL)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("engine.cooldown_window", cfg.Engine.CooldownWindow)
	v.SetDefault("engine.trigger_timeout", cfg.Engine.TriggerTimeout)
	v.SetDefault("engine.debt_age", cfg.Engine.DebtAge)
	v.SetDefault("engine.unclaimed_age", cfg.Engine.UnclaimedAge)
	v.SetDefault("engine.issue_window", cfg.Engine.IssueWindow)
	v.SetDefault("engine.issue_category", cfg.Engine.IssueCategory)
	v.SetDefault("engine.issue_threshold", cfg.Engine.IssueThreshold)
	v.SetDefault("engine.blocked_jobs_threshold", cfg.Engine.BlockedJobsThreshold)
	v.SetDefault("engine.unsafe_amount_threshold", cfg.Engine.UnsafeAmountThreshold)
	v.SetDefault("engine.closeout_hour", cfg.Engine.CloseoutHour)
	v.SetDefault("engine.quiet_start_hour", cfg.Engine.QuietStartHour)
	v.SetDefault("engine.quiet_end_hour", cfg.Engine.QuietEndHour)
	v.SetDefault("engine.quiet_probability", cfg.Engine.QuietProbability)
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Subject == "" {
		return fmt.Errorf("config: subject cannot be empty")
	}
	if c.Scheduler.Interval < time.Second {
		return fmt.Errorf("config: scheduler interval %s is below 1s", c.Scheduler.Interval)
	}
	if c.Engine.CloseoutHour < 0 || c.Engine.CloseoutHour > 23 {
		return fmt.Errorf("config: closeout hour %d out of range", c.Engine.CloseoutHour)
	}
	if c.Engine.QuietStartHour >= c.Engine.QuietEndHour {
		return fmt.Errorf("config: quiet window start %d must precede end %d", c.Engine.QuietStartHour, c.Engine.QuietEndHour)
	}
	if c.Engine.QuietProbability < 0 || c.Engine.QuietProbability > 1 {
		return fmt.Errorf("config: quiet probability %.2f out of range", c.Engine.QuietProbability)
	}
	switch c.Speech.Channel {
	case "console", "push":
	default:
		return fmt.Errorf("config: unknown speech channel %q", c.Speech.Channel)
	}
	return nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories. It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	out, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

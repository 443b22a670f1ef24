package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AIConfig holds settings for the OpenAI-compatible classifier.
type AIConfig struct {
	// BaseURL is the API root; "/chat/completions" is appended to it.
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Model       string  `mapstructure:"model" yaml:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// TimeoutSec bounds a single classification call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// MailboxConfig holds the IMAP account mailbot watches.
type MailboxConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`

	// Mailbox is the folder that is scanned for new messages.
	Mailbox      string `mapstructure:"mailbox" yaml:"mailbox"`
	LookbackDays int    `mapstructure:"lookback_days" yaml:"lookback_days"`
	FetchLimit   int    `mapstructure:"fetch_limit" yaml:"fetch_limit"`

	// MaxBodyBytes cuts the body handed to the classifier. Zero keeps it whole.
	MaxBodyBytes int `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`

	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// Folder candidates are tried in order until a MOVE succeeds.
	ArchiveFolders []string `mapstructure:"archive_folders" yaml:"archive_folders"`
	TrashFolders   []string `mapstructure:"trash_folders" yaml:"trash_folders"`
	JunkFolders    []string `mapstructure:"junk_folders" yaml:"junk_folders"`
}

// RuleConfig is one sender override rule as written in the config file.
// Actions use the same wire form as classifier responses.
type RuleConfig struct {
	Name           string       `mapstructure:"name" yaml:"name"`
	SenderContains string       `mapstructure:"sender_contains" yaml:"sender_contains"`
	Actions        []WireAction `mapstructure:"actions" yaml:"actions"`
}

// JournalConfig locates the decision journal database.
type JournalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging preferences. Command-line flags override them.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	AI      AIConfig      `mapstructure:"ai" yaml:"ai"`
	Mailbox MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	Rules   []RuleConfig  `mapstructure:"rules" yaml:"rules"`
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	// DryRun records decisions without touching the mailbox.
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	// Concurrency caps parallel decisions per poll cycle.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// Classifier defaults.
const (
	DefaultAIBaseURL = "https://api.openai.com/v1"
	DefaultAIModel   = "gpt-4o"
)

// EnvPrefix is prepended to environment overrides, e.g. MAILBOT_AI_MODEL.
const EnvPrefix = "MAILBOT"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailbot/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultJournalPath returns ~/.config/mailbot/journal.db.
func DefaultJournalPath() string {
	return filepath.Join(configDir(), "journal.db")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailbot")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		AI: AIConfig{
			BaseURL:     DefaultAIBaseURL,
			Model:       DefaultAIModel,
			Temperature: 0,
			TimeoutSec:  60,
		},
		Mailbox: MailboxConfig{
			Port:            993,
			TLS:             true,
			Mailbox:         "INBOX",
			LookbackDays:    3,
			FetchLimit:      50,
			MaxBodyBytes:    64 * 1024,
			PollIntervalSec: 300,
			ArchiveFolders:  []string{"Archive", "[Gmail]/All Mail", "INBOX.Archive"},
			TrashFolders:    []string{"Trash", "[Gmail]/Trash", "Deleted Messages", "INBOX.Trash"},
			JunkFolders:     []string{"Junk", "[Gmail]/Spam", "Spam", "INBOX.Junk"},
		},
		Rules:       []RuleConfig{},
		Journal:     JournalConfig{Path: DefaultJournalPath()},
		Log:         LogConfig{Level: "info"},
		Concurrency: 4,
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("ai.base_url", d.AI.BaseURL)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.temperature", d.AI.Temperature)
	v.SetDefault("ai.timeout_sec", d.AI.TimeoutSec)
	v.SetDefault("mailbox.host", "")
	v.SetDefault("mailbox.username", "")
	v.SetDefault("mailbox.port", d.Mailbox.Port)
	v.SetDefault("mailbox.tls", d.Mailbox.TLS)
	v.SetDefault("mailbox.mailbox", d.Mailbox.Mailbox)
	v.SetDefault("mailbox.lookback_days", d.Mailbox.LookbackDays)
	v.SetDefault("mailbox.fetch_limit", d.Mailbox.FetchLimit)
	v.SetDefault("mailbox.max_body_bytes", d.Mailbox.MaxBodyBytes)
	v.SetDefault("mailbox.poll_interval_sec", d.Mailbox.PollIntervalSec)
	v.SetDefault("mailbox.archive_folders", d.Mailbox.ArchiveFolders)
	v.SetDefault("mailbox.trash_folders", d.Mailbox.TrashFolders)
	v.SetDefault("mailbox.junk_folders", d.Mailbox.JunkFolders)
	v.SetDefault("journal.path", d.Journal.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("concurrency", d.Concurrency)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with MAILBOT_ override file values. If the
// file does not exist, defaults (plus environment overrides) are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv knows which keys exist.
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Mailbox.PollIntervalSec <= 0 {
		cfg.Mailbox.PollIntervalSec = defaultAppConfig().Mailbox.PollIntervalSec
	}
	if cfg.AI.TimeoutSec <= 0 {
		cfg.AI.TimeoutSec = defaultAppConfig().AI.TimeoutSec
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("ai", cfg.AI)
	v.Set("mailbox", cfg.Mailbox)
	v.Set("rules", cfg.Rules)
	v.Set("journal", cfg.Journal)
	v.Set("log", cfg.Log)
	v.Set("dry_run", cfg.DryRun)
	v.Set("concurrency", cfg.Concurrency)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

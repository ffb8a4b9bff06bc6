// Package config provides configuration loading and management for contractnotify.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete contractnotify configuration
type Config struct {
	NATS      NATSConfig      `yaml:"nats" json:"nats" envPrefix:"NATS_"`
	Directory DirectoryConfig `yaml:"directory" json:"directory" envPrefix:"DIRECTORY_"`
	Mail      MailConfig      `yaml:"mail" json:"mail" envPrefix:"MAIL_"`
	Alert     AlertConfig     `yaml:"alert" json:"alert" envPrefix:"ALERT_"`
	Notifier  NotifierConfig  `yaml:"notifier" json:"notifier" envPrefix:"NOTIFIER_"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics" envPrefix:"METRICS_"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = run without NATS)
	URL string `yaml:"url" json:"url" env:"URL"`
	// Name identifies this client to the server
	Name string `yaml:"name" json:"name" env:"NAME"`
	// MaxReconnects bounds reconnect attempts (-1 = forever)
	MaxReconnects int `yaml:"max_reconnects" json:"max_reconnects" env:"MAX_RECONNECTS"`
	// ReconnectWait is the pause between reconnect attempts
	ReconnectWait Duration `yaml:"reconnect_wait" json:"reconnect_wait" env:"RECONNECT_WAIT"`
}

// DirectoryConfig configures access to the semantic directory
type DirectoryConfig struct {
	// GatewayURL is the graph gateway base URL
	GatewayURL string `yaml:"gateway_url" json:"gateway_url" env:"GATEWAY_URL"`
	// Fixture is a YAML document fixture used instead of the gateway
	Fixture string `yaml:"fixture,omitempty" json:"fixture,omitempty" env:"FIXTURE"`
	// CallTimeout bounds every gateway call
	CallTimeout Duration `yaml:"call_timeout" json:"call_timeout" env:"CALL_TIMEOUT"`
	// MaxDepth bounds the parent-unit walk
	MaxDepth int `yaml:"max_depth" json:"max_depth" env:"MAX_DEPTH"`
	// StoredQuery selects the contracts to process (empty = built-in query)
	StoredQuery string `yaml:"stored_query,omitempty" json:"stored_query,omitempty" env:"STORED_QUERY"`
	// StoredQueryVariables are passed to the stored query
	StoredQueryVariables map[string]any `yaml:"stored_query_variables,omitempty" json:"stored_query_variables,omitempty"`
}

// MailConfig configures templates and letter preparation
type MailConfig struct {
	// Templates are glob patterns of template files (** allowed)
	Templates []string `yaml:"templates" json:"templates" env:"TEMPLATES" envSeparator:","`
	// Watch reloads templates when files change
	Watch bool `yaml:"watch" json:"watch" env:"WATCH"`
	// From is the sender identity of prepared mail
	From string `yaml:"from" json:"from" env:"FROM"`
	// Server prefixes contract links
	Server string `yaml:"server" json:"server" env:"SERVER"`
	// AppName is rendered as app_name
	AppName string `yaml:"app_name" json:"app_name" env:"APP_NAME"`
	// Placeholder replaces missing registration numbers
	Placeholder string `yaml:"placeholder" json:"placeholder" env:"PLACEHOLDER"`
	// Keys maps reasons to template keys
	Keys TemplateKeys `yaml:"keys" json:"keys" envPrefix:"KEY_"`
	// Publish sends prepared mail to mail.outbound.> when NATS is connected
	Publish bool `yaml:"publish" json:"publish" env:"PUBLISH"`
}

// TemplateKeys maps each reason code to a template key
type TemplateKeys struct {
	Executor        string `yaml:"executor" json:"executor" env:"EXECUTOR"`
	Department      string `yaml:"department" json:"department" env:"DEPARTMENT"`
	Controller      string `yaml:"controller" json:"controller" env:"CONTROLLER"`
	ControllerNotUZ string `yaml:"controller_not_uz" json:"controller_not_uz" env:"CONTROLLER_NOT_UZ"`
}

// AlertConfig configures the operator alert channels
type AlertConfig struct {
	// NATS publishes alerts on Subject when connected
	NATS bool `yaml:"nats" json:"nats" env:"NATS"`
	// Subject carries operator alerts
	Subject string `yaml:"subject" json:"subject" env:"SUBJECT"`
	// Telegram posts alerts to a chat when a token is set
	Telegram TelegramConfig `yaml:"telegram" json:"telegram" envPrefix:"TELEGRAM_"`
}

// TelegramConfig configures the Telegram Bot API channel
type TelegramConfig struct {
	BaseURL string   `yaml:"base_url,omitempty" json:"base_url,omitempty" env:"BASE_URL"`
	Token   string   `yaml:"token,omitempty" json:"token,omitempty" env:"TOKEN"`
	ChatID  string   `yaml:"chat_id,omitempty" json:"chat_id,omitempty" env:"CHAT_ID"`
	Timeout Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
}

// Enabled reports whether a bot token is configured.
func (t TelegramConfig) Enabled() bool {
	return t.Token != ""
}

// NotifierConfig configures the batch run
type NotifierConfig struct {
	// Interval between batch runs
	Interval Duration `yaml:"interval" json:"interval" env:"INTERVAL"`
	// RunOnStart runs a batch immediately when the service starts
	RunOnStart bool `yaml:"run_on_start" json:"run_on_start" env:"RUN_ON_START"`
	// Workers bounds concurrent contract resolutions
	Workers int `yaml:"workers" json:"workers" env:"WORKERS"`
	// ControllerRole receives contracts nobody else can take
	ControllerRole string `yaml:"controller_role" json:"controller_role" env:"CONTROLLER_ROLE"`
	// OrgRoot is the department at the top of the organization
	OrgRoot string `yaml:"org_root" json:"org_root" env:"ORG_ROOT"`
	// RecheckRecipient re-validates recipients before preparing mail
	RecheckRecipient bool `yaml:"recheck_recipient" json:"recheck_recipient" env:"RECHECK_RECIPIENT"`
	// PublishOutcomes writes notification triples back to the graph
	PublishOutcomes bool `yaml:"publish_outcomes" json:"publish_outcomes" env:"PUBLISH_OUTCOMES"`
	// RunHistory is how long run reports are kept
	RunHistory Duration `yaml:"run_history" json:"run_history" env:"RUN_HISTORY"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address of /metrics (empty = disabled)
	Addr string `yaml:"addr" json:"addr" env:"ADDR"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			Name:          "contractnotify",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
		},
		Directory: DirectoryConfig{
			CallTimeout: Duration(10 * time.Second),
			MaxDepth:    32,
		},
		Mail: MailConfig{
			Templates:   []string{"templates/**/*.yaml"},
			AppName:     "Optiflow",
			Placeholder: "б/н",
			Keys: TemplateKeys{
				Executor:        "contract-notify-executor",
				Department:      "contract-notify-department",
				Controller:      "contract-notify-controller",
				ControllerNotUZ: "contract-notify-controller-not-uz",
			},
			Publish: true,
		},
		Alert: AlertConfig{
			NATS:    true,
			Subject: "notification.alert.operators",
			Telegram: TelegramConfig{
				Timeout: Duration(10 * time.Second),
			},
		},
		Notifier: NotifierConfig{
			Interval:         Duration(24 * time.Hour),
			RunOnStart:       true,
			Workers:          4,
			ControllerRole:   "d:contract_controller_role",
			RecheckRecipient: true,
			PublishOutcomes:  true,
			RunHistory:       Duration(30 * 24 * time.Hour),
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	if c.Directory.GatewayURL == "" && c.Directory.Fixture == "" {
		errs = append(errs, fmt.Errorf("directory.gateway_url or directory.fixture is required"))
	}
	if c.Directory.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("directory.call_timeout must be positive"))
	}
	if len(c.Mail.Templates) == 0 {
		errs = append(errs, fmt.Errorf("mail.templates is required"))
	}
	if c.Alert.Telegram.Enabled() && c.Alert.Telegram.ChatID == "" {
		errs = append(errs, fmt.Errorf("alert.telegram.chat_id is required when a token is set"))
	}
	errs = append(errs, c.Notifier.validate())
	return errors.Join(errs...)
}

func (n NotifierConfig) validate() error {
	var errs []error
	if n.Interval <= 0 {
		errs = append(errs, fmt.Errorf("notifier.interval must be positive"))
	}
	if n.Workers < 1 {
		errs = append(errs, fmt.Errorf("notifier.workers must be at least 1"))
	}
	if n.ControllerRole == "" {
		errs = append(errs, fmt.Errorf("notifier.controller_role is required"))
	}
	if n.OrgRoot == "" {
		errs = append(errs, fmt.Errorf("notifier.org_root is required"))
	}
	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, path); err != nil {
		return nil, err
	}
	return config, nil
}

// applyFile decodes the file onto config; keys absent from the file keep
// their current values.
func applyFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values). Booleans are not merged; set them in files or the
// environment.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Name != "" {
		c.NATS.Name = other.NATS.Name
	}

	// Directory
	if other.Directory.GatewayURL != "" {
		c.Directory.GatewayURL = other.Directory.GatewayURL
	}
	if other.Directory.Fixture != "" {
		c.Directory.Fixture = other.Directory.Fixture
	}
	if other.Directory.CallTimeout != 0 {
		c.Directory.CallTimeout = other.Directory.CallTimeout
	}
	if other.Directory.MaxDepth != 0 {
		c.Directory.MaxDepth = other.Directory.MaxDepth
	}
	if other.Directory.StoredQuery != "" {
		c.Directory.StoredQuery = other.Directory.StoredQuery
	}

	// Mail
	if len(other.Mail.Templates) > 0 {
		c.Mail.Templates = other.Mail.Templates
	}
	if other.Mail.Server != "" {
		c.Mail.Server = other.Mail.Server
	}
	if other.Mail.From != "" {
		c.Mail.From = other.Mail.From
	}

	// Notifier
	if other.Notifier.Interval != 0 {
		c.Notifier.Interval = other.Notifier.Interval
	}
	if other.Notifier.Workers != 0 {
		c.Notifier.Workers = other.Notifier.Workers
	}
	if other.Notifier.ControllerRole != "" {
		c.Notifier.ControllerRole = other.Notifier.ControllerRole
	}
	if other.Notifier.OrgRoot != "" {
		c.Notifier.OrgRoot = other.Notifier.OrgRoot
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}

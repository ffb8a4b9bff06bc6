package contractnotifier

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/c360studio/semstreams/component"

	"github.com/c360studio/contractnotify/config"
)

// notifierSchema defines the configuration schema.
var notifierSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the contract-notifier component. The
// sections mirror config.Config so a single file feeds both the CLI and the
// component registry.
type Config struct {
	Directory config.DirectoryConfig `json:"directory"`
	Mail      config.MailConfig      `json:"mail"`
	Alert     config.AlertConfig     `json:"alert"`
	Notifier  config.NotifierConfig  `json:"notifier"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty"`
}

// FromAppConfig takes the component sections out of an application config.
func FromAppConfig(c *config.Config) Config {
	return Config{
		Directory: c.Directory,
		Mail:      c.Mail,
		Alert:     c.Alert,
		Notifier:  c.Notifier,
		Ports:     DefaultConfig().Ports,
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	defaults := config.DefaultConfig()
	return Config{
		Directory: defaults.Directory,
		Mail:      defaults.Mail,
		Alert:     defaults.Alert,
		Notifier:  defaults.Notifier,
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "contracts",
					Type:        "graphql",
					Subject:     "graph.query.entities",
					Description: "Stored query selecting contracts to check",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "outbound-mail",
					Type:        "jetstream",
					Subject:     "mail.outbound.>",
					StreamName:  "MAIL",
					Description: "Publish prepared notification mail",
					Required:    false,
				},
				{
					Name:        "operator-alerts",
					Type:        "jetstream",
					Subject:     "notification.alert.>",
					StreamName:  "NOTIFICATION",
					Description: "Publish operator alerts",
					Required:    false,
				},
				{
					Name:        "run-events",
					Type:        "jetstream",
					Subject:     RunSubjectPrefix + ">",
					StreamName:  "CONTRACT",
					Description: "Publish batch run reports",
					Required:    false,
				},
				{
					Name:        "graph-ingest",
					Type:        "jetstream",
					Subject:     "graph.ingest.entity",
					StreamName:  "GRAPH",
					Description: "Record notification outcomes on contracts",
					Required:    false,
				},
			},
		},
	}
}

// applyDefaults fills zero values that have no meaning as zero.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Directory.CallTimeout == 0 {
		c.Directory.CallTimeout = d.Directory.CallTimeout
	}
	if c.Directory.MaxDepth == 0 {
		c.Directory.MaxDepth = d.Directory.MaxDepth
	}
	if len(c.Mail.Templates) == 0 {
		c.Mail.Templates = d.Mail.Templates
	}
	if c.Mail.AppName == "" {
		c.Mail.AppName = d.Mail.AppName
	}
	if c.Mail.Placeholder == "" {
		c.Mail.Placeholder = d.Mail.Placeholder
	}
	if c.Alert.Subject == "" {
		c.Alert.Subject = d.Alert.Subject
	}
	if c.Notifier.Interval == 0 {
		c.Notifier.Interval = d.Notifier.Interval
	}
	if c.Notifier.Workers == 0 {
		c.Notifier.Workers = d.Notifier.Workers
	}
	if c.Notifier.ControllerRole == "" {
		c.Notifier.ControllerRole = d.Notifier.ControllerRole
	}
	if c.Notifier.RunHistory == 0 {
		c.Notifier.RunHistory = d.Notifier.RunHistory
	}
	if c.Ports == nil {
		c.Ports = d.Ports
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	app := config.Config{
		Directory: c.Directory,
		Mail:      c.Mail,
		Alert:     c.Alert,
		Notifier:  c.Notifier,
	}
	if err := app.Validate(); err != nil {
		return err
	}
	if c.Notifier.RunHistory < 0 {
		return errors.New("notifier.run_history must not be negative")
	}
	if c.Directory.MaxDepth < 0 {
		return fmt.Errorf("directory.max_depth must not be negative")
	}
	return nil
}

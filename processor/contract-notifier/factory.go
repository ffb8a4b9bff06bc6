package contractnotifier

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the contract-notifier component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        componentName,
		Factory:     NewComponent,
		Schema:      notifierSchema,
		Type:        "processor",
		Protocol:    "contract",
		Domain:      "notification",
		Description: "Resolves contract responsibles and prepares notification mail",
		Version:     "0.1.0",
	})
}

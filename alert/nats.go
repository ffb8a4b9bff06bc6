package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	// Register OperatorAlert type for message deserialization
	_ = component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "notification",
		Category:    "alert",
		Version:     "v1",
		Description: "Operator alert payload",
		Factory:     func() any { return &OperatorAlert{} },
	})
}

// OperatorsSubject carries operator alerts.
const OperatorsSubject = "notification.alert.operators"

// OperatorAlertType is the message type for operator alerts.
var OperatorAlertType = message.Type{
	Domain:   "notification",
	Category: "alert",
	Version:  "v1",
}

// OperatorAlert is an alert addressed to operators.
type OperatorAlert struct {
	// Message is the human readable headline.
	Message string `json:"message"`

	// Details lists affected items, e.g. contract ids.
	Details []string `json:"details,omitempty"`

	// Source names the emitting component.
	Source string `json:"source"`

	// Timestamp is when the alert was raised.
	Timestamp time.Time `json:"timestamp"`
}

// Schema returns the message type for this payload.
func (a *OperatorAlert) Schema() message.Type {
	return OperatorAlertType
}

// Validate validates the alert.
func (a *OperatorAlert) Validate() error {
	if a.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

// MarshalJSON marshals the alert to JSON.
func (a *OperatorAlert) MarshalJSON() ([]byte, error) {
	type Alias OperatorAlert
	return json.Marshal((*Alias)(a))
}

// UnmarshalJSON unmarshals the alert from JSON.
func (a *OperatorAlert) UnmarshalJSON(data []byte) error {
	type Alias OperatorAlert
	return json.Unmarshal(data, (*Alias)(a))
}

// Publisher publishes raw messages to a JetStream subject.
type Publisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// NATSAlerter publishes alerts on JetStream.
type NATSAlerter struct {
	nc      Publisher
	subject string
	source  string
	logger  *slog.Logger
}

// NewNATSAlerter creates an alerter publishing through nc. An empty subject
// means OperatorsSubject.
func NewNATSAlerter(nc Publisher, subject, source string, logger *slog.Logger) *NATSAlerter {
	if subject == "" {
		subject = OperatorsSubject
	}
	if source == "" {
		source = "contract-notifier"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSAlerter{nc: nc, subject: subject, source: source, logger: logger}
}

// NotifyOperators publishes the alert.
func (a *NATSAlerter) NotifyOperators(ctx context.Context, msg string, details []string) error {
	payload := &OperatorAlert{
		Message:   msg,
		Details:   details,
		Source:    a.source,
		Timestamp: time.Now(),
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid alert: %w", err)
	}

	baseMsg := message.NewBaseMessage(OperatorAlertType, payload, a.source)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := a.nc.PublishToStream(ctx, a.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", a.subject, err)
	}

	a.logger.Debug("Operator alert published", "subject", a.subject, "details", len(details))
	return nil
}

package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"gopkg.in/yaml.v3"
)

func init() {
	// Register OutboundMail type for message deserialization
	_ = component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "mail",
		Category:    "outbound",
		Version:     "v1",
		Description: "Prepared notification mail",
		Factory:     func() any { return &OutboundMail{} },
	})
}

// OutboundSubjectPrefix is followed by the mail id on the wire.
const OutboundSubjectPrefix = "mail.outbound."

// OutboundMailType is the message type for prepared mail.
var OutboundMailType = message.Type{
	Domain:   "mail",
	Category: "outbound",
	Version:  "v1",
}

// OutboundMail is the payload published for every prepared mail object.
type OutboundMail struct {
	MailObject
}

// Schema returns the message type for this payload.
func (m *OutboundMail) Schema() message.Type {
	return OutboundMailType
}

// Validate validates the payload.
func (m *OutboundMail) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	return nil
}

// MarshalJSON marshals the payload to JSON.
func (m *OutboundMail) MarshalJSON() ([]byte, error) {
	type Alias OutboundMail
	return json.Marshal((*Alias)(m))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (m *OutboundMail) UnmarshalJSON(data []byte) error {
	type Alias OutboundMail
	return json.Unmarshal(data, (*Alias)(m))
}

// Publisher publishes raw messages to a JetStream subject.
// *natsclient.Client satisfies it.
type Publisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// NATSTransport publishes mail objects to JetStream for a mailer to pick up.
type NATSTransport struct {
	nc     Publisher
	source string
	logger *slog.Logger
}

// NewNATSTransport creates a transport publishing through nc.
func NewNATSTransport(nc Publisher, source string, logger *slog.Logger) *NATSTransport {
	if logger == nil {
		logger = slog.Default()
	}
	if source == "" {
		source = "contract-notifier"
	}
	return &NATSTransport{nc: nc, source: source, logger: logger}
}

// Send publishes obj on mail.outbound.<id>.
func (t *NATSTransport) Send(ctx context.Context, obj *MailObject) error {
	payload := &OutboundMail{MailObject: *obj}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid mail: %w", err)
	}

	baseMsg := message.NewBaseMessage(OutboundMailType, payload, t.source)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	subject := OutboundSubjectPrefix + obj.ID
	if err := t.nc.PublishToStream(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	t.logger.Debug("Mail published", "mail", obj.ID, "subject", subject)
	return nil
}

// WriterTransport writes mail objects as YAML documents. Used for dry runs.
type WriterTransport struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterTransport creates a transport writing to w.
func NewWriterTransport(w io.Writer) *WriterTransport {
	return &WriterTransport{w: w}
}

// Send writes obj as one YAML document.
func (t *WriterTransport) Send(_ context.Context, obj *MailObject) error {
	data, err := yaml.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.w, "---\n%s", data); err != nil {
		return fmt.Errorf("write mail: %w", err)
	}
	return nil
}

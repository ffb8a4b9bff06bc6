package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/google/uuid"
)

// IDPrefix starts every mail object id.
const IDPrefix = "d:mail_"

// MailObject is a letter addressed to one recipient, ready for a transport.
type MailObject struct {
	ID        string    `json:"id" yaml:"id"`
	From      string    `json:"from,omitempty" yaml:"from,omitempty"`
	Recipient string    `json:"recipient" yaml:"recipient"`
	Subject   string    `json:"subject" yaml:"subject"`
	HTMLBody  string    `json:"html_body" yaml:"html_body"`
	PlainBody string    `json:"plain_body" yaml:"plain_body"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Preparer turns a rendered letter into a mail object for the recipient.
type Preparer interface {
	PrepareLetter(ctx context.Context, recipient string, letter Letter) (*MailObject, error)
}

// Transport delivers prepared mail objects.
type Transport interface {
	Send(ctx context.Context, obj *MailObject) error
}

// OutboxConfig configures an Outbox.
type OutboxConfig struct {
	// From is the sender identity stamped on every object.
	From string

	// Transport forwards prepared objects. Optional.
	Transport Transport

	Logger *slog.Logger
}

// Outbox prepares mail objects and hands them to the configured transport.
type Outbox struct {
	from      string
	transport Transport
	converter *md.Converter
	logger    *slog.Logger

	mu       sync.Mutex
	prepared int
}

// NewOutbox creates an outbox.
func NewOutbox(cfg OutboxConfig) *Outbox {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Outbox{
		from:      cfg.From,
		transport: cfg.Transport,
		converter: converter,
		logger:    cfg.Logger,
	}
}

// PrepareLetter builds the mail object. When the transport fails the prepared
// object is returned along with the error.
func (o *Outbox) PrepareLetter(ctx context.Context, recipient string, letter Letter) (*MailObject, error) {
	if recipient == "" {
		return nil, fmt.Errorf("prepare letter: empty recipient")
	}

	obj := &MailObject{
		ID:        IDPrefix + uuid.New().String(),
		From:      o.from,
		Recipient: recipient,
		Subject:   letter.Subject,
		HTMLBody:  letter.Body,
		PlainBody: o.plainText(letter.Body),
		CreatedAt: time.Now().UTC(),
	}

	o.mu.Lock()
	o.prepared++
	o.mu.Unlock()

	o.logger.Info("Mail prepared", "mail", obj.ID, "recipient", recipient, "subject", obj.Subject)

	if o.transport == nil {
		return obj, nil
	}
	if err := o.transport.Send(ctx, obj); err != nil {
		return obj, fmt.Errorf("send mail %s: %w", obj.ID, err)
	}
	return obj, nil
}

// Prepared returns how many objects the outbox has prepared.
func (o *Outbox) Prepared() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prepared
}

// plainText converts the HTML body to Markdown. Bodies without markup or that
// fail to convert are used as they are.
func (o *Outbox) plainText(body string) string {
	if !strings.ContainsRune(body, '<') {
		return body
	}
	text, err := o.converter.ConvertString(body)
	if err != nil {
		o.logger.Debug("Failed to convert mail body, keeping HTML", "error", err)
		return body
	}
	return strings.TrimSpace(text)
}

// Package notify turns resolved responsibilities into prepared letters.
//
// The Composer picks a template by reason, renders the contract list into it,
// re-checks that the recipient is still valid and hands the letter to a
// mail.Preparer. Every message yields an explicit Result; nothing is raised.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/contractnotify/directory"
	"github.com/c360studio/contractnotify/mail"
	"github.com/c360studio/contractnotify/responsibility"
	"github.com/c360studio/contractnotify/vocabulary/contract"
)

const (
	// DefaultAppName is rendered as app_name.
	DefaultAppName = "Optiflow"

	// DefaultPlaceholder stands in for a missing registration number.
	DefaultPlaceholder = "б/н"
)

// Directory loads documents and checks individuals for the Composer.
type Directory interface {
	LoadDocument(ctx context.Context, id string) (*directory.Document, error)
	IsIndividualValid(ctx context.Context, doc *directory.Document) (bool, error)
}

// TemplateKeys maps each reason to a template key.
type TemplateKeys struct {
	Executor        string `json:"executor" yaml:"executor"`
	Department      string `json:"department" yaml:"department"`
	Controller      string `json:"controller" yaml:"controller"`
	ControllerNotUZ string `json:"controller_not_uz" yaml:"controller_not_uz"`
}

// DefaultTemplateKeys returns the stock template keys.
func DefaultTemplateKeys() TemplateKeys {
	return TemplateKeys{
		Executor:        "contract-notify-executor",
		Department:      "contract-notify-department",
		Controller:      "contract-notify-controller",
		ControllerNotUZ: "contract-notify-controller-not-uz",
	}
}

// For returns the template key for the reason.
func (k TemplateKeys) For(reason responsibility.Reason) (string, bool) {
	var key string
	switch reason {
	case responsibility.ReasonExecutor:
		key = k.Executor
	case responsibility.ReasonDepartment:
		key = k.Department
	case responsibility.ReasonController:
		key = k.Controller
	case responsibility.ReasonControllerNotUZ:
		key = k.ControllerNotUZ
	default:
		return "", false
	}
	return key, key != ""
}

// withDefaults fills empty keys from DefaultTemplateKeys.
func (k TemplateKeys) withDefaults() TemplateKeys {
	d := DefaultTemplateKeys()
	if k.Executor == "" {
		k.Executor = d.Executor
	}
	if k.Department == "" {
		k.Department = d.Department
	}
	if k.Controller == "" {
		k.Controller = d.Controller
	}
	if k.ControllerNotUZ == "" {
		k.ControllerNotUZ = d.ControllerNotUZ
	}
	return k
}

// Config configures a Composer.
type Config struct {
	// Server prefixes contract links: <server>#/<contract id>.
	Server string

	AppName     string
	Placeholder string
	Templates   TemplateKeys

	// ControllerRole replaces recipients that fail the re-check.
	ControllerRole string

	// SkipRecipientCheck disables the validity re-check before hand-off.
	SkipRecipientCheck bool

	Logger *slog.Logger
}

// Composer renders and prepares notification letters.
type Composer struct {
	dir       Directory
	templates mail.TemplateSource
	renderer  mail.Renderer
	preparer  mail.Preparer
	cfg       Config
	logger    *slog.Logger
}

// NewComposer creates a composer.
func NewComposer(dir Directory, templates mail.TemplateSource, renderer mail.Renderer, preparer mail.Preparer, cfg Config) *Composer {
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = DefaultPlaceholder
	}
	if cfg.ControllerRole == "" {
		cfg.ControllerRole = responsibility.DefaultControllerRole
	}
	cfg.Templates = cfg.Templates.withDefaults()
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Composer{
		dir:       dir,
		templates: templates,
		renderer:  renderer,
		preparer:  preparer,
		cfg:       cfg,
		logger:    cfg.Logger,
	}
}

// Notify composes one letter for the recipient covering the contracts.
func (c *Composer) Notify(ctx context.Context, recipient string, reason responsibility.Reason, contractIDs []string) Result {
	res := Result{
		Recipient:   recipient,
		Reason:      reason,
		ContractIDs: append([]string(nil), contractIDs...),
	}

	key, ok := c.cfg.Templates.For(reason)
	if !ok {
		c.logger.Error("No template for reason, skipping", "recipient", recipient, "reason", reason.String())
		return res.skip(fmt.Errorf("%w: reason %s", mail.ErrTemplateNotFound, reason))
	}
	res.TemplateKey = key

	tmpl, err := c.templates.GetTemplate(key)
	if err != nil {
		if errors.Is(err, mail.ErrTemplateNotFound) {
			c.logger.Error("Template not found, skipping", "recipient", recipient, "template", key)
			return res.skip(err)
		}
		c.logger.Error("Failed to get template", "template", key, "error", err)
		return res.fail(err)
	}

	view := map[string]any{
		"app_name":      c.cfg.AppName,
		"contract_list": c.ContractList(ctx, contractIDs),
	}
	letter, err := mail.RenderLetter(c.renderer, tmpl, view)
	if err != nil {
		c.logger.Error("Failed to render letter", "template", key, "error", err)
		return res.fail(err)
	}

	res.Recipient = c.checkRecipient(ctx, recipient)
	if res.Recipient != recipient {
		res.Replaced = recipient
	}

	obj, err := c.preparer.PrepareLetter(ctx, res.Recipient, letter)
	if obj != nil {
		res.MailID = obj.ID
	}
	if err != nil {
		c.logger.Error("Failed to prepare letter", "recipient", res.Recipient, "error", err)
		return res.fail(err)
	}

	c.logger.Info("Mail send", "recipient", res.Recipient, "mail", res.MailID,
		"reason", reason.String(), "contracts", len(contractIDs))
	res.Status = StatusPrepared
	return res
}

// NotifyGroup composes one letter per reason found in the group.
func (c *Composer) NotifyGroup(ctx context.Context, group responsibility.Group) []Result {
	batches := group.ByReason()
	results := make([]Result, 0, len(batches))
	for _, b := range batches {
		results = append(results, c.Notify(ctx, b.Recipient, b.Reason, b.ContractIDs))
	}
	return results
}

// NotifyList composes letters for every group in the list.
func (c *Composer) NotifyList(ctx context.Context, list *responsibility.List) []Result {
	var results []Result
	for _, g := range list.Groups() {
		if ctx.Err() != nil {
			c.logger.Warn("Notification cancelled", "remaining_from", g.Recipient)
			break
		}
		results = append(results, c.NotifyGroup(ctx, g)...)
	}
	return results
}

// ContractList renders one line per contract joined by newlines.
func (c *Composer) ContractList(ctx context.Context, contractIDs []string) string {
	lines := make([]string, len(contractIDs))
	for i, id := range contractIDs {
		lines[i] = c.registrationNumber(ctx, id) + " " + c.cfg.Server + "#/" + id
	}
	return strings.Join(lines, "\n")
}

func (c *Composer) registrationNumber(ctx context.Context, contractID string) string {
	doc, err := c.dir.LoadDocument(ctx, contractID)
	if err != nil {
		c.logger.Debug("Registration number unavailable", "contract", contractID, "error", err)
		return c.cfg.Placeholder
	}
	if num, ok := doc.First(contract.RegistrationNumber); ok && strings.TrimSpace(num) != "" {
		return num
	}
	return c.cfg.Placeholder
}

// checkRecipient returns the recipient if it is still valid, else the
// controller role. The controller role itself is not an individual.
func (c *Composer) checkRecipient(ctx context.Context, recipient string) string {
	if c.cfg.SkipRecipientCheck || recipient == c.cfg.ControllerRole {
		return recipient
	}

	doc, err := c.dir.LoadDocument(ctx, recipient)
	if err != nil {
		c.logger.Warn("Recipient cannot be loaded, sending to controller", "recipient", recipient, "error", err)
		return c.cfg.ControllerRole
	}
	valid, err := c.dir.IsIndividualValid(ctx, doc)
	if err != nil {
		c.logger.Warn("Recipient check failed, sending to controller", "recipient", recipient, "error", err)
		return c.cfg.ControllerRole
	}
	if !valid {
		c.logger.Info("Recipient no longer valid, sending to controller", "recipient", recipient)
		return c.cfg.ControllerRole
	}
	return recipient
}

// Package contractnotifier provides a processor that periodically finds the
// person responsible for every selected contract and prepares notification
// letters for them.
package contractnotifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/google/uuid"

	"github.com/c360studio/contractnotify/alert"
	"github.com/c360studio/contractnotify/directory"
	"github.com/c360studio/contractnotify/graph"
	"github.com/c360studio/contractnotify/mail"
	"github.com/c360studio/contractnotify/notify"
	"github.com/c360studio/contractnotify/responsibility"
)

const componentName = "contract-notifier"

// StoredQueryFailedMessage heads the operator alert sent when no contracts
// could be selected.
const StoredQueryFailedMessage = "Contract notifier cannot select contracts, batch skipped:"

// Publisher publishes raw messages to a JetStream subject.
type Publisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// Collaborators are the adapters a Component runs on. Alerter, Publisher and
// Runs are optional.
type Collaborators struct {
	Directory directory.Gateway
	Templates mail.TemplateSource
	Renderer  mail.Renderer
	Preparer  mail.Preparer
	Alerter   alert.Operators
	Publisher Publisher
	Runs      RunStore
	Metrics   *Metrics
}

// Component implements the contract-notifier processor.
type Component struct {
	name   string
	config Config
	logger *slog.Logger

	dir        directory.Gateway
	templates  mail.TemplateSource
	resolver   *responsibility.Resolver
	aggregator *responsibility.Aggregator
	composer   *notify.Composer
	alerter    alert.Operators
	publisher  Publisher
	runs       RunStore
	metrics    *Metrics

	// Serializes batch runs.
	runMu sync.Mutex

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	runsCompleted atomic.Int64
	runsFailed    atomic.Int64
	lastRunMu     sync.RWMutex
	lastRun       time.Time
	lastRunErr    error
}

// NewComponent creates a new contract-notifier processor from JSON config.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	config := DefaultConfig()
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return Build(context.Background(), config, deps.NATSClient, deps.GetLogger())
}

// Option adjusts the adapters Build wires.
type Option func(*buildOptions)

type buildOptions struct {
	transport mail.Transport
	metrics   *Metrics
}

// WithMailTransport hands prepared mail to t instead of the NATS outbound
// stream.
func WithMailTransport(t mail.Transport) Option {
	return func(o *buildOptions) { o.transport = t }
}

// WithMetrics records batch metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(o *buildOptions) { o.metrics = m }
}

// Build wires the production adapters described by config. A nil nc runs
// without NATS: mail is prepared but not published and run reports stay in
// memory.
func Build(ctx context.Context, config Config, nc *natsclient.Client, logger *slog.Logger, opts ...Option) (*Component, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	collab := Collaborators{Metrics: o.metrics}

	// Directory
	if config.Directory.Fixture != "" {
		mem, err := directory.LoadFixture(config.Directory.Fixture)
		if err != nil {
			return nil, fmt.Errorf("load directory fixture: %w", err)
		}
		collab.Directory = mem
	} else {
		collab.Directory = directory.NewGraphClient(directory.GraphConfig{
			GatewayURL:           config.Directory.GatewayURL,
			CallTimeout:          config.Directory.CallTimeout.Duration(),
			MaxDepth:             config.Directory.MaxDepth,
			StoredQuery:          config.Directory.StoredQuery,
			StoredQueryVariables: config.Directory.StoredQueryVariables,
			Logger:               logger,
		})
	}

	// Templates
	store := mail.NewTemplateStore(config.Mail.Templates, logger)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("load mail templates: %w", err)
	}
	collab.Templates = store

	// Mail preparation
	outboxCfg := mail.OutboxConfig{From: config.Mail.From, Logger: logger}
	switch {
	case o.transport != nil:
		outboxCfg.Transport = o.transport
	case nc != nil && config.Mail.Publish:
		outboxCfg.Transport = mail.NewNATSTransport(nc, componentName, logger)
	}
	collab.Preparer = mail.NewOutbox(outboxCfg)

	// Operator alerts
	alerters := alert.Multi{alert.LogAlerter{Logger: logger}}
	if nc != nil && config.Alert.NATS {
		alerters = append(alerters, alert.NewNATSAlerter(nc, config.Alert.Subject, componentName, logger))
	}
	if config.Alert.Telegram.Enabled() {
		tg, err := alert.NewTelegramAlerter(alert.TelegramConfig{
			BaseURL: config.Alert.Telegram.BaseURL,
			Token:   config.Alert.Telegram.Token,
			ChatID:  config.Alert.Telegram.ChatID,
			Timeout: config.Alert.Telegram.Timeout.Duration(),
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create telegram alerter: %w", err)
		}
		alerters = append(alerters, tg)
	}
	collab.Alerter = alerters

	// Outcomes and run history
	if nc != nil {
		collab.Publisher = nc
		runs, err := NewKVRunStore(ctx, nc, config.Notifier.RunHistory.Duration())
		if err != nil {
			return nil, fmt.Errorf("create run store: %w", err)
		}
		collab.Runs = runs
	} else {
		collab.Runs = NewMemoryRunStore()
	}

	return New(config, collab, logger)
}

// New creates a component over explicit collaborators.
func New(config Config, collab Collaborators, logger *slog.Logger) (*Component, error) {
	if collab.Directory == nil {
		return nil, errors.New("directory is required")
	}
	if collab.Templates == nil {
		return nil, errors.New("template source is required")
	}
	if collab.Preparer == nil {
		return nil, errors.New("mail preparer is required")
	}
	if collab.Renderer == nil {
		collab.Renderer = mail.NewMustacheRenderer()
	}
	if collab.Metrics == nil {
		collab.Metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	config.applyDefaults()

	resolver := responsibility.NewResolver(collab.Directory, responsibility.ResolverConfig{
		ControllerRole: config.Notifier.ControllerRole,
		OrgRoot:        config.Notifier.OrgRoot,
		Logger:         logger,
	})

	aggCfg := responsibility.AggregatorConfig{
		ControllerRole: config.Notifier.ControllerRole,
		Workers:        config.Notifier.Workers,
		Logger:         logger,
	}
	if collab.Alerter != nil {
		aggCfg.Alerter = collab.Alerter
	}

	keys := config.Mail.Keys
	composer := notify.NewComposer(collab.Directory, collab.Templates, collab.Renderer, collab.Preparer, notify.Config{
		Server:      config.Mail.Server,
		AppName:     config.Mail.AppName,
		Placeholder: config.Mail.Placeholder,
		Templates: notify.TemplateKeys{
			Executor:        keys.Executor,
			Department:      keys.Department,
			Controller:      keys.Controller,
			ControllerNotUZ: keys.ControllerNotUZ,
		},
		ControllerRole:     config.Notifier.ControllerRole,
		SkipRecipientCheck: !config.Notifier.RecheckRecipient,
		Logger:             logger,
	})

	return &Component{
		name:       componentName,
		config:     config,
		logger:     logger,
		dir:        collab.Directory,
		templates:  collab.Templates,
		resolver:   resolver,
		aggregator: responsibility.NewAggregator(resolver, aggCfg),
		composer:   composer,
		alerter:    collab.Alerter,
		publisher:  collab.Publisher,
		runs:       collab.Runs,
		metrics:    collab.Metrics,
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized contract-notifier",
		"interval", c.config.Notifier.Interval,
		"workers", c.config.Notifier.Workers,
		"org_root", c.config.Notifier.OrgRoot)
	return nil
}

// Start begins the periodic batch loop.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	if store, ok := c.templates.(*mail.TemplateStore); ok && c.config.Mail.Watch {
		if err := store.Watch(subCtx, 0); err != nil {
			c.logger.Warn("Template hot reload disabled", "error", err)
		}
	}

	go c.runLoop(subCtx)

	c.logger.Info("contract-notifier started",
		"interval", c.config.Notifier.Interval,
		"run_on_start", c.config.Notifier.RunOnStart)

	return nil
}

// runLoop runs a batch on every tick.
func (c *Component) runLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.Notifier.Interval.Duration())
	defer ticker.Stop()

	if c.config.Notifier.RunOnStart {
		c.runLogged(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runLogged(ctx)
		}
	}
}

func (c *Component) runLogged(ctx context.Context) {
	if _, err := c.RunOnce(ctx); err != nil {
		c.logger.Error("Contract notification run failed", "error", err)
	}
}

// RunOnce executes one batch: select contracts, resolve responsibilities,
// compose letters and record the outcome. Only a failed contract selection
// is returned as an error.
func (c *Component) RunOnce(ctx context.Context) (*RunReport, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	report := &RunReport{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}

	ids, err := c.dir.RunStoredQuery(ctx)
	if err != nil {
		took := time.Since(report.StartedAt)
		c.metrics.observeFailedRun(took)
		c.recordRun(err)
		c.alertOperators(ctx, StoredQueryFailedMessage, []string{err.Error()})
		return nil, fmt.Errorf("run stored query: %w", err)
	}
	c.logger.Info("Contracts selected", "run", report.ID, "contracts", len(ids))

	list, failed := c.aggregator.ResolveAll(ctx, ids)
	results := c.composer.NotifyList(ctx, list)
	c.publishOutcomes(ctx, results)

	report.FinishedAt = time.Now().UTC()
	report.Contracts = len(ids)
	report.Failed = failed
	report.Resolutions = resolutionCounts(list)
	report.Messages = notify.Counts(results)
	report.Results = outcomes(results)

	c.metrics.observeRun(report, report.Duration())
	c.recordRun(nil)

	if c.runs != nil {
		if err := c.runs.Save(ctx, report); err != nil {
			c.logger.Warn("Failed to save run report", "run", report.ID, "error", err)
		}
	}
	if err := c.publishRun(ctx, report); err != nil {
		c.logger.Warn("Failed to publish run report", "run", report.ID, "error", err)
	}

	c.logger.Info("Contract notification run finished",
		"run", report.ID,
		"contracts", report.Contracts,
		"failed", len(report.Failed),
		"prepared", report.Messages[notify.StatusPrepared],
		"skipped", report.Messages[notify.StatusSkipped],
		"duration", report.Duration())

	return report, nil
}

// Resolve resolves a single contract without notifying anyone.
func (c *Component) Resolve(ctx context.Context, contractID string) (responsibility.Responsible, error) {
	return c.resolver.Resolve(ctx, contractID)
}

// Runs returns the run report store.
func (c *Component) Runs() RunStore {
	return c.runs
}

func (c *Component) publishOutcomes(ctx context.Context, results []notify.Result) {
	if c.publisher == nil || !c.config.Notifier.PublishOutcomes {
		return
	}
	for _, res := range results {
		if err := graph.PublishResult(ctx, c.publisher, res); err != nil {
			c.logger.Warn("Failed to publish notification outcome",
				"recipient", res.Recipient, "mail", res.MailID, "error", err)
		}
	}
}

func (c *Component) publishRun(ctx context.Context, report *RunReport) error {
	if c.publisher == nil {
		return nil
	}

	baseMsg := message.NewBaseMessage(RunReportType, report, componentName)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}

	subject := RunSubjectPrefix + report.ID
	if err := c.publisher.PublishToStream(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

func (c *Component) alertOperators(ctx context.Context, msg string, details []string) {
	if c.alerter == nil {
		return
	}
	if err := c.alerter.NotifyOperators(ctx, msg, details); err != nil {
		c.logger.Warn("Failed to alert operators", "error", err)
	}
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.running = false
	c.logger.Info("contract-notifier stopped",
		"runs_completed", c.runsCompleted.Load(),
		"runs_failed", c.runsFailed.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        componentName,
		Type:        "processor",
		Description: "Resolves contract responsibles and prepares notification mail",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}
	return buildPorts(c.config.Ports.Inputs, component.DirectionInput)
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}
	return buildPorts(c.config.Ports.Outputs, component.DirectionOutput)
}

func buildPorts(defs []component.PortDefinition, direction component.Direction) []component.Port {
	ports := make([]component.Port, len(defs))
	for i, portDef := range defs {
		ports[i] = buildPort(portDef, direction)
	}
	return ports
}

// buildPort creates a component.Port from a PortDefinition.
func buildPort(portDef component.PortDefinition, direction component.Direction) component.Port {
	port := component.Port{
		Name:        portDef.Name,
		Direction:   direction,
		Required:    portDef.Required,
		Description: portDef.Description,
	}
	if portDef.Type == "jetstream" {
		port.Config = component.JetStreamPort{
			StreamName: portDef.StreamName,
			Subjects:   []string{portDef.Subject},
		}
	} else {
		port.Config = component.NATSPort{
			Subject: portDef.Subject,
		}
	}
	return port
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return notifierSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	_, lastErr := c.getLastRun()

	status := "stopped"
	switch {
	case running && lastErr != nil:
		status = "degraded"
	case running:
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running && lastErr == nil,
		LastCheck:  time.Now(),
		ErrorCount: int(c.runsFailed.Load()),
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	lastRun, _ := c.getLastRun()

	var errorRate float64
	if total := c.runsCompleted.Load() + c.runsFailed.Load(); total > 0 {
		errorRate = float64(c.runsFailed.Load()) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         errorRate,
		LastActivity:      lastRun,
	}
}

func (c *Component) recordRun(err error) {
	if err != nil {
		c.runsFailed.Add(1)
	} else {
		c.runsCompleted.Add(1)
	}
	c.lastRunMu.Lock()
	c.lastRun = time.Now()
	c.lastRunErr = err
	c.lastRunMu.Unlock()
}

func (c *Component) getLastRun() (time.Time, error) {
	c.lastRunMu.RLock()
	defer c.lastRunMu.RUnlock()
	return c.lastRun, c.lastRunErr
}

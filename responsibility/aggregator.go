package responsibility

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// FailedContractsMessage heads the operator alert listing unresolved contracts.
const FailedContractsMessage = "Cant find responsible for this contracts, send it to controller:"

// ContractResolver resolves one contract.
type ContractResolver interface {
	Resolve(ctx context.Context, contractID string) (Responsible, error)
}

// Alerter reaches human operators. Delivery is best effort.
type Alerter interface {
	NotifyOperators(ctx context.Context, message string, details []string) error
}

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// ControllerRole receives contracts whose resolution failed.
	ControllerRole string

	// Workers bounds concurrent resolutions. Values below 1 mean the default.
	Workers int

	// Alerter is told about failed contracts. Optional.
	Alerter Alerter

	Logger *slog.Logger
}

// Aggregator resolves a batch of contracts into a List.
type Aggregator struct {
	resolver   ContractResolver
	controller string
	workers    int
	alerter    Alerter
	logger     *slog.Logger
}

// NewAggregator creates an aggregator around the resolver.
func NewAggregator(resolver ContractResolver, cfg AggregatorConfig) *Aggregator {
	if cfg.ControllerRole == "" {
		cfg.ControllerRole = DefaultControllerRole
	}
	if cfg.Workers < 1 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Aggregator{
		resolver:   resolver,
		controller: cfg.ControllerRole,
		workers:    cfg.Workers,
		alerter:    cfg.Alerter,
		logger:     cfg.Logger,
	}
}

// ResolveAll resolves every contract id exactly once. Contracts that fail to
// resolve go to the controller and are returned in failed. It never fails.
func (a *Aggregator) ResolveAll(ctx context.Context, contractIDs []string) (list *List, failed []string) {
	results := make([]Responsible, len(contractIDs))
	errs := make([]error, len(contractIDs))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, id := range contractIDs {
		g.Go(func() error {
			a.logger.Info("Try to get responsible for contract", "contract", id)
			results[i], errs[i] = a.resolver.Resolve(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	list = NewList()
	for i, id := range contractIDs {
		if errs[i] != nil {
			a.logger.Error("Cant calculate person to notify, send it to controller",
				"contract", id, "error", errs[i])
			failed = append(failed, id)
			list.Add(NewResponsible(a.controller, ReasonController, id))
			continue
		}
		a.logger.Info("Get responsible for contract",
			"contract", id,
			"responsible", results[i].ID,
			"reason", results[i].Responsibility.Reason.String())
		list.Add(results[i])
	}

	if len(failed) > 0 {
		a.alertFailed(ctx, failed)
	}

	return list, failed
}

func (a *Aggregator) alertFailed(ctx context.Context, failed []string) {
	a.logger.Error(FailedContractsMessage, "contracts", failed)
	if a.alerter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Operator alert panicked", "panic", r)
		}
	}()
	if err := a.alerter.NotifyOperators(ctx, FailedContractsMessage, failed); err != nil {
		a.logger.Warn("Failed to alert operators", "error", err)
	}
}

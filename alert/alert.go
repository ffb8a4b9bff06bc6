// Package alert reaches human operators when the notifier cannot do its job
// unattended. Delivery is best effort everywhere.
package alert

import (
	"context"
	"errors"
	"log/slog"
)

// Operators is anything that can tell operators about a problem.
type Operators interface {
	NotifyOperators(ctx context.Context, message string, details []string) error
}

// Multi fans an alert out to every channel and joins their errors.
type Multi []Operators

// NotifyOperators calls every channel even when earlier ones fail.
func (m Multi) NotifyOperators(ctx context.Context, message string, details []string) error {
	var errs []error
	for _, op := range m {
		if op == nil {
			continue
		}
		if err := op.NotifyOperators(ctx, message, details); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogAlerter writes alerts to the log.
type LogAlerter struct {
	Logger *slog.Logger
}

// NotifyOperators logs the alert at error level.
func (l LogAlerter) NotifyOperators(_ context.Context, message string, details []string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("Operator alert", "message", message, "details", details)
	return nil
}

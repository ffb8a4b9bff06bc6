// Package graph records notification outcomes back into the knowledge graph.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/message"

	"github.com/c360studio/contractnotify/notify"
	"github.com/c360studio/contractnotify/responsibility"
	"github.com/c360studio/contractnotify/vocabulary/contract"
)

// Subject for graph ingestion.
const GraphIngestSubject = "graph.ingest.entity"

const source = "contract-notifier"

// Publisher publishes raw messages to a JetStream subject.
type Publisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// NotificationTriples describes who was notified about the contract, why and
// with which mail.
func NotificationTriples(contractID string, r responsibility.Responsible, mailID string, now time.Time) []message.Triple {
	triple := func(predicate string, object any) message.Triple {
		return message.Triple{
			Subject:    contractID,
			Predicate:  predicate,
			Object:     object,
			Source:     source,
			Timestamp:  now,
			Confidence: 1.0,
		}
	}

	triples := []message.Triple{
		triple(contract.NotifiedResponsible, r.ID),
		triple(contract.NotificationReason, r.Responsibility.Reason.String()),
		triple(contract.NotifiedAt, now.UTC().Format(time.RFC3339)),
	}
	if mailID != "" {
		triples = append(triples, triple(contract.NotificationMail, mailID))
	}
	return triples
}

// PublishNotification publishes the notification outcome for one contract.
func PublishNotification(ctx context.Context, nc Publisher, contractID string, r responsibility.Responsible, mailID string) error {
	if nc == nil {
		return nil // Skip publishing if no NATS client (graceful degradation)
	}

	now := time.Now()
	payload, err := NewContractEntity(contractID, NotificationTriples(contractID, r, mailID, now), now)
	if err != nil {
		return fmt.Errorf("invalid notification entity: %w", err)
	}

	baseMsg := message.NewBaseMessage(EntityType, payload, source)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal notification entity: %w", err)
	}

	if err := nc.PublishToStream(ctx, GraphIngestSubject, data); err != nil {
		return fmt.Errorf("publish notification entity: %w", err)
	}
	return nil
}

// PublishResult publishes an outcome for every contract of a prepared result.
// Results that were not prepared are ignored.
func PublishResult(ctx context.Context, nc Publisher, res notify.Result) error {
	if nc == nil || res.Status != notify.StatusPrepared {
		return nil
	}

	var errs []error
	for _, id := range res.ContractIDs {
		r := responsibility.NewResponsible(res.Recipient, res.Reason, id)
		if err := PublishNotification(ctx, nc, id, r, res.MailID); err != nil {
			errs = append(errs, fmt.Errorf("contract %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

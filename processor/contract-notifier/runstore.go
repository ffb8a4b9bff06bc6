package contractnotifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"
)

// RunsBucket is the KV bucket holding run reports.
const RunsBucket = "CONTRACT_NOTIFY_RUNS"

// RunStore persists run reports.
type RunStore interface {
	Save(ctx context.Context, report *RunReport) error
	Get(ctx context.Context, id string) (*RunReport, error)
	List(ctx context.Context) ([]*RunReport, error)
}

// KVRunStore keeps run reports in a JetStream KV bucket.
type KVRunStore struct {
	bucket jetstream.KeyValue
}

// NewKVRunStore opens or creates the runs bucket. Reports expire after ttl.
func NewKVRunStore(ctx context.Context, nc *natsclient.Client, ttl time.Duration) (*KVRunStore, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	// CreateOrUpdateKeyValue is idempotent and handles race conditions
	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      RunsBucket,
		Description: "Contract notification run reports",
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}

	return &KVRunStore{bucket: bucket}, nil
}

// Save stores the report under its id.
func (s *KVRunStore) Save(ctx context.Context, report *RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	if _, err := s.bucket.Put(ctx, report.ID, data); err != nil {
		return fmt.Errorf("put run report: %w", err)
	}
	return nil
}

// Get retrieves a report by id.
func (s *KVRunStore) Get(ctx context.Context, id string) (*RunReport, error) {
	entry, err := s.bucket.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run report: %w", err)
	}

	var report RunReport
	if err := json.Unmarshal(entry.Value(), &report); err != nil {
		return nil, fmt.Errorf("unmarshal run report: %w", err)
	}
	return &report, nil
}

// List returns every stored report, newest first.
func (s *KVRunStore) List(ctx context.Context) ([]*RunReport, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		// Empty bucket returns ErrNoKeysFound - this is not an error
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []*RunReport{}, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}

	var reports []*RunReport
	for _, key := range keys {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		report, err := s.Get(ctx, key)
		if err != nil {
			continue // Skip errors for individual keys
		}
		reports = append(reports, report)
	}
	sortNewestFirst(reports)
	return reports, nil
}

// MemoryRunStore keeps run reports in memory. Used without NATS.
type MemoryRunStore struct {
	mu      sync.RWMutex
	reports map[string]*RunReport
}

// NewMemoryRunStore creates an empty store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{reports: make(map[string]*RunReport)}
}

// Save stores a copy of the report.
func (s *MemoryRunStore) Save(_ context.Context, report *RunReport) error {
	cp := *report
	s.mu.Lock()
	s.reports[report.ID] = &cp
	s.mu.Unlock()
	return nil
}

// Get retrieves a report by id.
func (s *MemoryRunStore) Get(_ context.Context, id string) (*RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("get run report: %w", jetstream.ErrKeyNotFound)
	}
	cp := *report
	return &cp, nil
}

// List returns every stored report, newest first.
func (s *MemoryRunStore) List(_ context.Context) ([]*RunReport, error) {
	s.mu.RLock()
	reports := make([]*RunReport, 0, len(s.reports))
	for _, r := range s.reports {
		cp := *r
		reports = append(reports, &cp)
	}
	s.mu.RUnlock()
	sortNewestFirst(reports)
	return reports, nil
}

func sortNewestFirst(reports []*RunReport) {
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
}

package contractnotifier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/contractnotify/notify"
)

func TestMemoryRunStore(t *testing.T) {
	store := NewMemoryRunStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, &RunReport{ID: "old", StartedAt: base}))
	require.NoError(t, store.Save(ctx, &RunReport{ID: "new", StartedAt: base.Add(time.Hour)}))

	runs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, jetstream.ErrKeyNotFound)
}

func TestRunReport_JSON(t *testing.T) {
	report := &RunReport{
		ID:          "run-1",
		StartedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2026, 1, 1, 0, 0, 2, 0, time.UTC),
		Contracts:   2,
		Resolutions: map[string]int{"executor": 2},
		Messages:    map[notify.Status]int{notify.StatusSkipped: 1},
		Results: []notify.Outcome{
			{Recipient: "d:x", Reason: "reason(9)", Status: notify.StatusSkipped, Error: "template not found"},
		},
	}
	require.NoError(t, report.Validate())

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var back RunReport
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, report.Results, back.Results)
	assert.Equal(t, 2*time.Second, back.Duration())
	assert.Equal(t, RunReportType, back.Schema())

	assert.Error(t, (&RunReport{}).Validate())
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewMetrics(reg)
	b := NewMetrics(reg)

	a.Contracts.Add(3)
	assert.Same(t, a.Runs, b.Runs)
	assert.Equal(t, a.Contracts, b.Contracts)
}

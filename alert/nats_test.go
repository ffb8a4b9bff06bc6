package alert

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/c360studio/semstreams/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) PublishToStream(_ context.Context, subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func TestNATSAlerter_NotifyOperators(t *testing.T) {
	pub := &fakePublisher{}
	alerter := NewNATSAlerter(pub, "", "", nil)

	require.NoError(t, alerter.NotifyOperators(context.Background(), "Cant find responsible", []string{"d:c1", "d:c2"}))
	assert.Equal(t, OperatorsSubject, pub.subject)

	var baseMsg message.BaseMessage
	require.NoError(t, json.Unmarshal(pub.data, &baseMsg))
	payloadBytes, err := json.Marshal(baseMsg.Payload())
	require.NoError(t, err)

	var got OperatorAlert
	require.NoError(t, json.Unmarshal(payloadBytes, &got))
	assert.Equal(t, "Cant find responsible", got.Message)
	assert.Equal(t, []string{"d:c1", "d:c2"}, got.Details)
	assert.Equal(t, "contract-notifier", got.Source)
	assert.False(t, got.Timestamp.IsZero())
}

func TestNATSAlerter_Errors(t *testing.T) {
	boom := errors.New("publish failed")
	alerter := NewNATSAlerter(&fakePublisher{err: boom}, "custom.alerts", "test", nil)

	assert.ErrorIs(t, alerter.NotifyOperators(context.Background(), "msg", nil), boom)
	assert.ErrorContains(t, alerter.NotifyOperators(context.Background(), "", nil), "message is required")
}

package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type recordingTransport struct {
	mu   sync.Mutex
	sent []*MailObject
	err  error
}

func (r *recordingTransport) Send(_ context.Context, obj *MailObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, obj)
	return r.err
}

func TestOutbox_PrepareLetter(t *testing.T) {
	transport := &recordingTransport{}
	outbox := NewOutbox(OutboxConfig{From: "d:notifier", Transport: transport})

	obj, err := outbox.PrepareLetter(context.Background(), "d:executor", Letter{
		Subject: "Optiflow: contracts",
		Body:    "<p>Contracts:</p><p><b>42</b> https://host/#/d:c1</p>",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(obj.ID, IDPrefix))
	assert.Equal(t, "d:notifier", obj.From)
	assert.Equal(t, "d:executor", obj.Recipient)
	assert.Equal(t, "Optiflow: contracts", obj.Subject)
	assert.Contains(t, obj.HTMLBody, "<b>42</b>")
	assert.NotContains(t, obj.PlainBody, "<p>")
	assert.Contains(t, obj.PlainBody, "42")
	assert.False(t, obj.CreatedAt.IsZero())

	require.Len(t, transport.sent, 1)
	assert.Same(t, obj, transport.sent[0])
	assert.Equal(t, 1, outbox.Prepared())
}

func TestOutbox_UniqueIDs(t *testing.T) {
	outbox := NewOutbox(OutboxConfig{})
	a, err := outbox.PrepareLetter(context.Background(), "d:x", Letter{Body: "plain"})
	require.NoError(t, err)
	b, err := outbox.PrepareLetter(context.Background(), "d:x", Letter{Body: "plain"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "plain", a.PlainBody)
}

func TestOutbox_TransportError(t *testing.T) {
	boom := errors.New("broker down")
	outbox := NewOutbox(OutboxConfig{Transport: &recordingTransport{err: boom}})

	obj, err := outbox.PrepareLetter(context.Background(), "d:x", Letter{Body: "b"})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, obj)
	assert.Contains(t, err.Error(), obj.ID)
}

func TestOutbox_EmptyRecipient(t *testing.T) {
	obj, err := NewOutbox(OutboxConfig{}).PrepareLetter(context.Background(), "", Letter{})
	assert.Error(t, err)
	assert.Nil(t, obj)
}

func TestWriterTransport(t *testing.T) {
	var buf bytes.Buffer
	transport := NewWriterTransport(&buf)

	require.NoError(t, transport.Send(context.Background(), &MailObject{ID: "d:mail_1", Recipient: "d:x", Subject: "s"}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "---\n"))

	var back MailObject
	require.NoError(t, yaml.Unmarshal([]byte(strings.TrimPrefix(out, "---\n")), &back))
	assert.Equal(t, "d:mail_1", back.ID)
	assert.Equal(t, "d:x", back.Recipient)
}

package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingOperators struct {
	calls int
	err   error
}

func (r *recordingOperators) NotifyOperators(context.Context, string, []string) error {
	r.calls++
	return r.err
}

func TestMulti_NotifyOperators(t *testing.T) {
	errA := errors.New("telegram down")
	errB := errors.New("nats down")
	a := &recordingOperators{err: errA}
	b := &recordingOperators{}
	c := &recordingOperators{err: errB}

	err := Multi{a, nil, b, c}.NotifyOperators(context.Background(), "msg", []string{"d:c1"})

	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
}

func TestMulti_AllSucceed(t *testing.T) {
	assert.NoError(t, Multi{&recordingOperators{}, LogAlerter{}}.NotifyOperators(context.Background(), "msg", nil))
	assert.NoError(t, Multi(nil).NotifyOperators(context.Background(), "msg", nil))
}

package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestShutdownManager(t *testing.T) {
	log, _ := test.NewNullLogger()

	t.Run("runs functions in reverse order", func(t *testing.T) {
		sm := NewShutdownManager(log, nil, 0)
		var order []string
		sm.Register(func(context.Context) error { order = append(order, "db"); return nil })
		sm.Register(func(context.Context) error { order = append(order, "cache"); return nil })

		assert.NoError(t, sm.Shutdown(context.Background()))
		assert.Equal(t, []string{"cache", "db"}, order)
	})

	t.Run("joins errors and keeps going", func(t *testing.T) {
		sm := NewShutdownManager(log, nil, 0)
		ran := false
		sm.Register(func(context.Context) error { ran = true; return nil })
		sm.Register(func(context.Context) error { return errors.New("flush failed") })

		err := sm.Shutdown(context.Background())
		assert.ErrorContains(t, err, "flush failed")
		assert.True(t, ran)
	})

	t.Run("context cancel triggers shutdown", func(t *testing.T) {
		sm := NewShutdownManager(log, nil, 0)
		called := false
		sm.Register(func(context.Context) error { called = true; return nil })

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, sm.WaitForSignal(ctx))
		assert.True(t, called)
	})
}

func TestOTelDisabled(t *testing.T) {
	log, _ := test.NewNullLogger()

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, log)
	assert.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, ShutdownOTel(context.Background(), providers, log))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOn")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

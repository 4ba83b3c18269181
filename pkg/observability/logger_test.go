package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := NewLogger("debug", "json", &buf)
		require.NoError(t, err)

		log.WithField("org_id", 3).Debug("resolved")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "resolved", entry["msg"])
		assert.Equal(t, float64(3), entry["org_id"])
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := NewLogger("warn", "text", &buf)
		require.NoError(t, err)

		log.Info("hidden")
		assert.Empty(t, buf.String())
		assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := NewLogger("loud", "json", nil)
		assert.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := NewLogger("info", "xml", nil)
		assert.Error(t, err)
	})
}

func TestWithTraceContext(t *testing.T) {
	log, hook := test.NewNullLogger()

	WithTraceContext(context.Background(), log).Info("no span")
	assert.NotContains(t, hook.LastEntry().Data, "trace_id")

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	WithTraceContext(ctx, log).Info("with span")
	assert.Equal(t, span.SpanContext().TraceID().String(), hook.LastEntry().Data["trace_id"])
}

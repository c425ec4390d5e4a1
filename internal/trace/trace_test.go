package trace

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewWithWriter(&buf, nil)
	require.NoError(t, err)

	_, span := p.Start(context.Background(), "cycle.decide")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"cycle.decide"`)
}

func TestDisabled(t *testing.T) {
	p := Disabled()
	ctx, span := p.Start(context.Background(), "noop")
	span.End()

	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, p.Shutdown(context.Background()))
}

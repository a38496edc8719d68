package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/gaborage/go-netreq/config"
)

var testApp = config.AppConfig{Name: "netreq", Version: "v0.0.1", Env: config.EnvDevelopment}

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(config.ObservabilityConfig{}, testApp)
	require.NoError(t, err)

	_, ok := p.(*noopProvider)
	assert.True(t, ok)
	assert.IsType(t, noop.NewMeterProvider(), p.MeterProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderStdout(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(config.ObservabilityConfig{
		Enabled:     true,
		ServiceName: "netreq-test",
		Exporter:    config.ExporterStdout,
	}, testApp, WithWriter(&buf), WithoutGlobal(), WithMetricInterval(time.Hour))
	require.NoError(t, err)

	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "netreq.process")
	span.End()

	counter, err := p.MeterProvider().Meter("test").Int64Counter("netreq.attempts")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, p.ForceFlush(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "netreq.process")
	assert.Contains(t, out, "netreq.attempts")
	assert.Contains(t, out, "netreq-test")

	assert.NoError(t, Shutdown(p, time.Second))
}

func TestNewProviderOTLPDoesNotDial(t *testing.T) {
	p, err := NewProvider(config.ObservabilityConfig{
		Enabled:     true,
		ServiceName: "netreq-test",
		Exporter:    config.ExporterOTLP,
		Endpoint:    "127.0.0.1:4318",
		Insecure:    true,
	}, testApp, WithoutGlobal())
	require.NoError(t, err)
	assert.NotNil(t, p.TracerProvider())
	assert.NotNil(t, p.MeterProvider())
}

func TestNewProviderUnknownExporter(t *testing.T) {
	_, err := NewProvider(config.ObservabilityConfig{Enabled: true, Exporter: "zipkin"}, testApp)
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

type failingProvider struct {
	noopProvider
}

func (failingProvider) Shutdown(context.Context) error { return errors.New("flush failed") }

func TestShutdown(t *testing.T) {
	assert.NoError(t, Shutdown(nil, 0))
	assert.NoError(t, Shutdown(newNoopProvider(), 0))

	err := Shutdown(&failingProvider{}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")
}

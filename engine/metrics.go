package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/go-netreq/logger"
)

const (
	instrumentationName = "github.com/gaborage/go-netreq/engine"

	metricAttempts   = "netreq.attempts"
	metricRedirects  = "netreq.redirects"
	metricNicChanges = "netreq.nic.changes"
	metricRetryDelay = "netreq.retry.delay"
	metricOutcomes   = "netreq.outcomes"

	attrPolicy  = "netreq.policy"
	attrOutcome = "netreq.outcome"
	attrNic     = "netreq.nic"
)

// Retry delays span whole units between 1 and 24 seconds by default.
var retryDelayBuckets = []float64{1, 2, 4, 6, 8, 12, 16, 20, 24}

// instruments holds the engine's metric instruments. A nil instrument means
// it failed to initialize and is skipped.
type instruments struct {
	attempts   metric.Int64Counter
	redirects  metric.Int64Counter
	nicChanges metric.Int64Counter
	retryDelay metric.Float64Histogram
	outcomes   metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider, log logger.Logger) *instruments {
	meter := mp.Meter(instrumentationName)
	ins := &instruments{}

	var err error
	ins.attempts, err = meter.Int64Counter(
		metricAttempts,
		metric.WithDescription("Requests sent, including retries and redirect hops"),
		metric.WithUnit("{attempt}"),
	)
	logMetricError(log, metricAttempts, err)

	ins.redirects, err = meter.Int64Counter(
		metricRedirects,
		metric.WithDescription("Redirect hops taken"),
		metric.WithUnit("{redirect}"),
	)
	logMetricError(log, metricRedirects, err)

	ins.nicChanges, err = meter.Int64Counter(
		metricNicChanges,
		metric.WithDescription("Moves to the next network interface"),
		metric.WithUnit("{change}"),
	)
	logMetricError(log, metricNicChanges, err)

	ins.retryDelay, err = meter.Float64Histogram(
		metricRetryDelay,
		metric.WithDescription("Delay waited before retrying on the same interface"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(retryDelayBuckets...),
	)
	logMetricError(log, metricRetryDelay, err)

	ins.outcomes, err = meter.Int64Counter(
		metricOutcomes,
		metric.WithDescription("Finished requests by outcome"),
		metric.WithUnit("{request}"),
	)
	logMetricError(log, metricOutcomes, err)

	return ins
}

func logMetricError(log logger.Logger, name string, err error) {
	if err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("Failed to initialize engine metric")
	}
}

func (i *instruments) recordAttempt(ctx context.Context, policy RedirectPolicy, nicName string) {
	if i.attempts != nil {
		i.attempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrPolicy, policy.String()),
			attribute.String(attrNic, nicName),
		))
	}
}

func (i *instruments) recordRedirect(ctx context.Context, policy RedirectPolicy) {
	if i.redirects != nil {
		i.redirects.Add(ctx, 1, metric.WithAttributes(attribute.String(attrPolicy, policy.String())))
	}
}

func (i *instruments) recordNicChange(ctx context.Context) {
	if i.nicChanges != nil {
		i.nicChanges.Add(ctx, 1)
	}
}

func (i *instruments) recordRetryDelay(ctx context.Context, d time.Duration) {
	if i.retryDelay != nil {
		i.retryDelay.Record(ctx, d.Seconds())
	}
}

func (i *instruments) recordOutcome(ctx context.Context, policy RedirectPolicy, outcome string) {
	if i.outcomes != nil {
		i.outcomes.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrPolicy, policy.String()),
			attribute.String(attrOutcome, outcome),
		))
	}
}

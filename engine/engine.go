// Package engine drives a NetworkRequest to a terminal outcome. It walks the
// host's interfaces, makes sure each has an address, sends the request,
// follows redirects according to a RedirectPolicy and retries transient
// failures after a bounded, jittered delay.
package engine

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-netreq/address"
	"github.com/gaborage/go-netreq/config"
	netreqhttp "github.com/gaborage/go-netreq/http"
	"github.com/gaborage/go-netreq/logger"
	"github.com/gaborage/go-netreq/nic"
	"github.com/gaborage/go-netreq/request"
	"github.com/gaborage/go-netreq/wait"
)

const (
	// DefaultMaxRedirects allows the single hop the redirect fixtures exercise.
	DefaultMaxRedirects = 1
	// DefaultMaxAttemptsPerNic caps sends on one interface before moving on.
	DefaultMaxAttemptsPerNic = 3
)

// Enumerator lists the interfaces a request may be bound to.
type Enumerator interface {
	Cursor() (*nic.Cursor, error)
}

// AddressAcquirer makes sure the bound interface of a request has an address.
type AddressAcquirer interface {
	Acquire(ctx context.Context, req *request.NetworkRequest, bound time.Duration) (netip.Addr, error)
	Release(ctx context.Context, req *request.NetworkRequest)
}

// Sender performs one HTTP exchange for a request against target.
type Sender interface {
	Perform(ctx context.Context, req *request.NetworkRequest, target string) error
}

// Limits bounds the work done for a single request.
type Limits struct {
	MaxRedirects      int
	MaxAttemptsPerNic int
	// Delay bounds both the retry delay and the DHCP wait.
	Delay wait.Bounds
}

func DefaultLimits() Limits {
	return Limits{
		MaxRedirects:      DefaultMaxRedirects,
		MaxAttemptsPerNic: DefaultMaxAttemptsPerNic,
		Delay:             wait.DefaultBounds(),
	}
}

func (l Limits) Validate() error {
	if l.MaxRedirects < 0 {
		return fmt.Errorf("max redirects must not be negative, got %d", l.MaxRedirects)
	}
	if l.MaxAttemptsPerNic < 1 {
		return fmt.Errorf("max attempts per interface must be at least 1, got %d", l.MaxAttemptsPerNic)
	}
	if err := l.Delay.Validate(); err != nil {
		return fmt.Errorf("invalid delay bounds: %w", err)
	}
	if l.Delay.Max > wait.MaxDelayBeforeRetry {
		return fmt.Errorf("maximum delay %d exceeds %d units", l.Delay.Max, wait.MaxDelayBeforeRetry)
	}
	return nil
}

// Engine processes network requests. It keeps no per-request state and may
// serve several requests concurrently, each with its own NetworkRequest.
type Engine struct {
	enumerator Enumerator
	acquirer   AddressAcquirer
	sender     Sender
	waiter     wait.Waiter
	limits     Limits
	logger     logger.Logger
	tracer     oteltrace.Tracer
	metrics    *instruments
}

// Builder provides a fluent interface for assembling an engine
type Builder struct {
	logger         logger.Logger
	enumerator     Enumerator
	acquirer       AddressAcquirer
	sender         Sender
	waiter         wait.Waiter
	limits         Limits
	tracerProvider oteltrace.TracerProvider
	meterProvider  metric.MeterProvider
}

// NewBuilder creates a builder with default limits. Collaborators left unset
// are replaced by the host implementations in Build.
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		logger: log,
		limits: DefaultLimits(),
	}
}

// NewBuilderFromConfig creates a builder whose limits and host collaborators
// follow cfg.
func NewBuilderFromConfig(cfg *config.Config, log logger.Logger) *Builder {
	b := NewBuilder(log)
	b.limits = LimitsFromConfig(cfg)
	b.waiter = wait.NewWaiter(nil)
	b.enumerator = nic.NewEnumerator(nic.SystemSource{IncludeLoopback: cfg.NIC.IncludeLoopback})
	b.acquirer = address.NewAcquirer(address.SystemPlatform{}, b.waiter, cfg.DHCP.PollInterval, b.logger)
	b.sender = netreqhttp.NewBuilder(b.logger).
		WithTimeout(cfg.Session.Timeout).
		WithMaxBodyBytes(cfg.Session.MaxBodyBytes).
		WithStrictURLPath(cfg.Session.StrictURLPath).
		WithUserAgent(cfg.Session.UserAgent).
		Build()
	return b
}

// LimitsFromConfig extracts engine limits from the retry and redirect sections.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		MaxRedirects:      cfg.Redirect.MaxHops,
		MaxAttemptsPerNic: cfg.Retry.MaxAttemptsPerNic,
		Delay: wait.Bounds{
			Min:  cfg.Retry.MinDelay,
			Max:  cfg.Retry.MaxDelay,
			Unit: cfg.Retry.Unit,
		},
	}
}

func (b *Builder) WithEnumerator(e Enumerator) *Builder {
	b.enumerator = e
	return b
}

func (b *Builder) WithAcquirer(a AddressAcquirer) *Builder {
	b.acquirer = a
	return b
}

func (b *Builder) WithSender(s Sender) *Builder {
	b.sender = s
	return b
}

func (b *Builder) WithWaiter(w wait.Waiter) *Builder {
	b.waiter = w
	return b
}

func (b *Builder) WithLimits(l Limits) *Builder {
	b.limits = l
	return b
}

func (b *Builder) WithTracerProvider(tp oteltrace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.meterProvider = mp
	return b
}

// Build validates the limits and creates the engine
func (b *Builder) Build() (*Engine, error) {
	if err := b.limits.Validate(); err != nil {
		return nil, err
	}

	waiter := b.waiter
	if waiter == nil {
		waiter = wait.NewWaiter(nil)
	}
	enumerator := b.enumerator
	if enumerator == nil {
		enumerator = nic.NewEnumerator(nil)
	}
	acquirer := b.acquirer
	if acquirer == nil {
		acquirer = address.NewAcquirer(address.SystemPlatform{}, waiter, 0, b.logger)
	}
	sender := b.sender
	if sender == nil {
		sender = netreqhttp.NewBuilder(b.logger).Build()
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := b.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	return &Engine{
		enumerator: enumerator,
		acquirer:   acquirer,
		sender:     sender,
		waiter:     waiter,
		limits:     b.limits,
		logger:     b.logger,
		tracer:     tp.Tracer(instrumentationName),
		metrics:    newInstruments(mp, b.logger),
	}, nil
}

// Limits returns the limits the engine was built with.
func (e *Engine) Limits() Limits {
	return e.limits
}

// Process runs req to completion, following server redirect locations.
// It returns a human readable outcome message and, unless the request
// succeeded, a *request.Error describing the failure. req.Status is
// populated on every path.
func (e *Engine) Process(ctx context.Context, req *request.NetworkRequest) (string, error) {
	return e.run(ctx, req, FollowLocation)
}

// ProcessWorkaround is Process, except that a redirect resubmits to the
// request's bootstrap URL instead of the server-provided location.
func (e *Engine) ProcessWorkaround(ctx context.Context, req *request.NetworkRequest) (string, error) {
	return e.run(ctx, req, UseBootstrap)
}

// ProcessWithPolicy runs req with an explicit redirect policy.
func (e *Engine) ProcessWithPolicy(ctx context.Context, req *request.NetworkRequest, policy RedirectPolicy) (string, error) {
	return e.run(ctx, req, policy)
}

var (
	defaultEngine    *Engine
	defaultEngineErr error
	defaultOnce      sync.Once
)

// Default returns the engine backing the package-level entry points. It uses
// the host interfaces and default limits.
func Default() (*Engine, error) {
	defaultOnce.Do(func() {
		defaultEngine, defaultEngineErr = NewBuilder(logger.Nop()).Build()
	})
	return defaultEngine, defaultEngineErr
}

// ProcessNetworkRequest processes req with the default engine, following
// server redirect locations.
func ProcessNetworkRequest(ctx context.Context, req *request.NetworkRequest) (string, error) {
	e, err := Default()
	if err != nil {
		return err.Error(), err
	}
	return e.Process(ctx, req)
}

// ProcessNetworkRequestWorkaround processes req with the default engine,
// redirecting to the bootstrap URL.
func ProcessNetworkRequestWorkaround(ctx context.Context, req *request.NetworkRequest) (string, error) {
	e, err := Default()
	if err != nil {
		return err.Error(), err
	}
	return e.ProcessWorkaround(ctx, req)
}

// Package harness runs fixture cases through the request processor and
// reports how each outcome compares with the expected one.
package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gaborage/go-netreq/loader"
	"github.com/gaborage/go-netreq/logger"
	"github.com/gaborage/go-netreq/request"
	"github.com/gaborage/go-netreq/testing/fixtures"
)

// ErrNoTrustAnchorSource is returned for a case naming a trust anchor when
// the runner has no resource loader.
var ErrNoTrustAnchorSource = errors.New("no resource loader configured for trust anchors")

// Processor is the pair of entry points a case can run through.
type Processor interface {
	Process(ctx context.Context, req *request.NetworkRequest) (string, error)
	ProcessWorkaround(ctx context.Context, req *request.NetworkRequest) (string, error)
}

// Result is the outcome of one case.
type Result struct {
	Case       fixtures.Case
	Outcome    request.Kind
	Message    string
	HTTPStatus int
	FinalURL   string
	Redirects  []string
	Attempts   int
	NicChanges int
	Interface  string
	Duration   time.Duration
	Passed     bool
	// Err is set when the case could not be run at all.
	Err error
}

// Summary aggregates the results of a run, in case order.
type Summary struct {
	Results  []Result
	Passed   int
	Failed   int
	Duration time.Duration
}

// OK reports whether every case passed.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// Runner executes cases.
type Runner struct {
	processor   Processor
	resources   *loader.Loader
	log         logger.Logger
	parallelism int
}

// Option customises a Runner.
type Option func(*Runner)

// WithResources sets the loader trust anchors are read from.
func WithResources(l *loader.Loader) Option {
	return func(r *Runner) {
		r.resources = l
	}
}

// WithParallelism runs up to n cases at once. Values below one mean one.
func WithParallelism(n int) Option {
	return func(r *Runner) {
		r.parallelism = n
	}
}

// NewRunner creates a runner driving processor.
func NewRunner(processor Processor, log logger.Logger, opts ...Option) *Runner {
	r := &Runner{processor: processor, log: log, parallelism: 1}
	for _, opt := range opts {
		opt(r)
	}
	if r.parallelism < 1 {
		r.parallelism = 1
	}
	return r
}

// Run executes cases and returns their results. Case failures are recorded
// in the summary; the error is only set when ctx ends before every case ran.
func (r *Runner) Run(ctx context.Context, cases []fixtures.Case) (*Summary, error) {
	start := time.Now()
	results := make([]Result, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i := range cases {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = r.RunCase(gctx, cases[i])
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{Results: results, Duration: time.Since(start)}
	for i := range results {
		if results[i].Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	r.log.Info().
		Int("cases", len(cases)).
		Int("passed", summary.Passed).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("Fixture run completed")

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("fixture run interrupted: %w", err)
	}
	return summary, nil
}

// RunCase builds a request for c, runs it through the variant c selects and
// compares the outcome kind with the expected one. Every caller-owned
// section of the request is cleared before returning.
func (r *Runner) RunCase(ctx context.Context, c fixtures.Case) Result {
	start := time.Now()
	res := Result{Case: c}

	req, err := r.buildRequest(c)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		r.log.Error().Err(err).Str("case", c.Name).Msg("Unable to prepare fixture case")
		return res
	}
	defer req.Cleanup(request.ScopeAll)

	var msg string
	if c.Variant == fixtures.VariantWorkaround {
		msg, err = r.processor.ProcessWorkaround(ctx, req)
	} else {
		msg, err = r.processor.Process(ctx, req)
	}

	res.Outcome = outcomeOf(err)
	res.Message = msg
	res.HTTPStatus = req.Status.HTTPStatus
	res.FinalURL = req.Status.FinalURL
	res.Redirects = append([]string(nil), req.Status.Redirects...)
	res.Attempts = req.Status.Attempts
	res.NicChanges = req.Status.NicChanges
	res.Interface = req.Status.Interface
	res.Duration = time.Since(start)
	res.Passed = res.Outcome == c.ExpectedKind()

	event := r.log.WithContext(ctx).Info()
	if !res.Passed {
		event = r.log.WithContext(ctx).Warn()
	}
	event.
		Str("case", c.Name).
		Str("variant", string(c.Variant)).
		Str("expected", c.Expect).
		Str("outcome", string(res.Outcome)).
		Int("http_status", res.HTTPStatus).
		Dur("duration", res.Duration).
		Msg("Fixture case finished")

	return res
}

func (r *Runner) buildRequest(c fixtures.Case) (*request.NetworkRequest, error) {
	method, err := request.ParseMethod(c.Method)
	if err != nil {
		return nil, err
	}

	req := request.New(c.URL, method)
	req.Request.BootstrapURL = c.BootstrapURL
	if c.Body != "" {
		req.Request.Body = []byte(c.Body)
		req.Request.ContentType = c.ContentType
	}

	if c.TrustAnchor != "" {
		if r.resources == nil {
			return nil, ErrNoTrustAnchorSource
		}
		anchor, err := r.resources.LoadBytesByName(c.TrustAnchor)
		if err != nil {
			return nil, fmt.Errorf("failed to load trust anchor: %w", err)
		}
		req.TrustAnchor = anchor
	}
	return req, nil
}

func outcomeOf(err error) request.Kind {
	if err == nil {
		return request.KindSuccess
	}
	if k := request.KindOf(err); k != "" {
		return k
	}
	return request.KindProtocolError
}

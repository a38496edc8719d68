package engine

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-netreq/logger"
	"github.com/gaborage/go-netreq/nic"
	"github.com/gaborage/go-netreq/request"
	"github.com/gaborage/go-netreq/trace"
)

// run is the state of one Process call.
type run struct {
	e      *Engine
	req    *request.NetworkRequest
	policy RedirectPolicy
	log    logger.Logger
	span   oteltrace.Span

	cursor *nic.Cursor
	state  State

	target    string
	redirects []string
	sendErr   error

	nicAttempts int
	attempts    int
	nicsTried   int
	nicChanges  int

	// lastErr is the most recent per-interface failure; outcome is set on Done.
	lastErr error
	outcome error
}

func (e *Engine) run(ctx context.Context, req *request.NetworkRequest, policy RedirectPolicy) (string, error) {
	if req == nil {
		err := request.NewError(request.KindInvalidURL, "no request to process", nil)
		return err.Error(), err
	}

	if req.ID != "" {
		ctx = trace.WithRequestID(ctx, req.ID)
	} else {
		ctx, req.ID = trace.EnsureRequestID(ctx)
	}

	ctx, span := e.tracer.Start(ctx, "netreq.process",
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String(attrPolicy, policy.String()),
			attribute.String("url.full", req.Request.URL),
		),
	)
	defer span.End()

	r := &run{
		e:      e,
		req:    req,
		policy: policy,
		log:    e.logger.WithContext(ctx),
		span:   span,
		target: req.Request.URL,
	}

	r.log.Info().
		Str("url", req.Request.URL).
		Str("method", string(req.Request.Method)).
		Str("policy", policy.String()).
		Msg("Processing network request")

	r.loop(ctx)
	return r.finish(ctx)
}

func (r *run) loop(ctx context.Context) {
	r.state = StateSelectNic
	for r.state != StateDone {
		next := r.step(ctx)
		r.log.Debug().
			Str("from", r.state.String()).
			Str("to", next.String()).
			Str("target", r.target).
			Msg("Engine transition")
		r.state = next
	}
}

func (r *run) step(ctx context.Context) State {
	switch r.state {
	case StateSelectNic:
		return r.selectNic()
	case StateAcquireAddress:
		return r.acquireAddress(ctx)
	case StateSend:
		return r.send(ctx)
	case StateInterpret:
		return r.interpret()
	case StateRedirect:
		return r.redirect(ctx)
	case StateRetrySameNic:
		return r.retrySameNic(ctx)
	case StateNextNic:
		return r.nextNic(ctx)
	default:
		return r.done(request.NewError(request.KindProtocolError, fmt.Sprintf("unexpected state %s", r.state), nil))
	}
}

func (r *run) done(outcome error) State {
	r.outcome = outcome
	return StateDone
}

func (r *run) selectNic() State {
	if r.cursor == nil {
		cursor, err := r.e.enumerator.Cursor()
		if err != nil {
			return r.done(request.NewError(request.KindNoInterfacesFound, "no usable network interface", err))
		}
		r.cursor = cursor
	}

	iface, ok := r.cursor.Next()
	if !ok {
		if r.nicsTried == 0 || r.lastErr == nil {
			return r.done(request.NewError(request.KindNoInterfacesFound, "no usable network interface", nil))
		}
		return r.done(r.lastErr)
	}

	r.req.Bind(iface)
	r.nicsTried++
	r.nicAttempts = 0
	r.target = r.req.Request.URL
	r.redirects = nil

	r.log.Debug().
		Str("nic", iface.String()).
		Int("remaining", r.cursor.Remaining()).
		Msg("Bound network interface")
	return StateAcquireAddress
}

func (r *run) acquireAddress(ctx context.Context) State {
	bound := r.e.limits.Delay.Duration(r.e.limits.Delay.Jitter())
	addr, err := r.e.acquirer.Acquire(ctx, r.req, bound)
	if err != nil {
		if request.IsKind(err, request.KindCanceled) {
			return r.done(err)
		}
		r.lastErr = err
		r.log.Warn().
			Err(err).
			Str("nic", r.req.Nic.Interface.String()).
			Msg("Address acquisition failed")
		return StateNextNic
	}

	r.span.AddEvent("address.acquired", oteltrace.WithAttributes(
		attribute.String(attrNic, r.req.Nic.Interface.String()),
		attribute.String("network.local.address", addr.String()),
	))
	return StateSend
}

func (r *run) send(ctx context.Context) State {
	r.nicAttempts++
	r.attempts++
	r.e.metrics.recordAttempt(ctx, r.policy, r.req.Nic.Interface.String())

	r.req.CleanupStatus()
	r.sendErr = r.e.sender.Perform(ctx, r.req, r.target)
	return StateInterpret
}

func (r *run) interpret() State {
	if err := r.sendErr; err != nil {
		kind := request.KindOf(err)
		switch {
		case kind.Retryable():
			r.lastErr = err
			if r.nicAttempts < r.e.limits.MaxAttemptsPerNic {
				return StateRetrySameNic
			}
			return StateNextNic
		case kind.PerInterface():
			r.lastErr = err
			return StateNextNic
		default:
			return r.done(err)
		}
	}

	status := r.req.Status.HTTPStatus
	switch {
	case status >= 200 && status < 300:
		return r.done(nil)
	case status >= 300 && status < 400:
		return StateRedirect
	default:
		return r.done(request.NewHTTPError(status, fmt.Sprintf("server answered %s for %s", statusText(r.req), r.target)))
	}
}

func (r *run) redirect(ctx context.Context) State {
	if len(r.redirects) >= r.e.limits.MaxRedirects {
		e := request.NewError(request.KindTooManyRedirects,
			fmt.Sprintf("redirect limit of %d reached at %s", r.e.limits.MaxRedirects, r.target), nil)
		e.HTTPStatus = r.req.Status.HTTPStatus
		return r.done(e)
	}

	next, err := r.policy.next(r.req, r.target)
	if err != nil {
		return r.done(err)
	}

	r.log.Info().
		Str("from", r.target).
		Str("to", next).
		Int("status", r.req.Status.HTTPStatus).
		Msg("Following redirect")
	r.span.AddEvent("redirect", oteltrace.WithAttributes(
		attribute.String("url.from", r.target),
		attribute.String("url.to", next),
	))
	r.e.metrics.recordRedirect(ctx, r.policy)

	r.redirects = append(r.redirects, next)
	r.target = next
	return StateSend
}

func (r *run) retrySameNic(ctx context.Context) State {
	d := r.e.limits.Delay.Duration(r.e.limits.Delay.Jitter())
	r.log.Warn().
		Err(r.lastErr).
		Int("attempt", r.nicAttempts).
		Dur("delay", d).
		Msg("Retrying on the same interface")
	r.e.metrics.recordRetryDelay(ctx, d)

	if err := r.e.waiter.Sleep(ctx, d); err != nil {
		return r.done(request.NewError(request.KindCanceled, "retry delay interrupted", err))
	}
	return StateSend
}

func (r *run) nextNic(ctx context.Context) State {
	r.e.acquirer.Release(ctx, r.req)
	r.req.Unbind()
	if r.cursor.Remaining() > 0 {
		r.nicChanges++
		r.e.metrics.recordNicChange(ctx)
	}
	return StateSelectNic
}

// finish records the outcome on the status section and releases the
// interface binding.
func (r *run) finish(ctx context.Context) (string, error) {
	outcome := r.outcome
	if outcome != nil && request.KindOf(outcome) == "" {
		outcome = request.NewError(request.KindProtocolError, "request failed", outcome)
	}

	st := &r.req.Status
	st.Code = request.KindOf(outcome)
	st.FinalURL = r.target
	st.Redirects = r.redirects
	st.Attempts = r.attempts
	st.NicChanges = r.nicChanges
	if r.req.Nic.Bound {
		st.Interface = r.req.Nic.Interface.String()
	}

	var reqErr *request.Error
	if errors.As(outcome, &reqErr) && reqErr.HTTPStatus != 0 {
		st.HTTPStatus = reqErr.HTTPStatus
	}

	if outcome == nil {
		st.Message = fmt.Sprintf("%s %s", statusText(r.req), r.target)
	} else {
		st.Message = outcome.Error()
		if st.HTTPStatus == 0 {
			r.req.CleanupResponse()
		}
	}

	if r.req.Nic.Bound {
		r.e.acquirer.Release(ctx, r.req)
	}
	r.req.Unbind()

	r.e.metrics.recordOutcome(ctx, r.policy, string(st.Code))
	r.span.SetAttributes(
		attribute.String(attrOutcome, string(st.Code)),
		attribute.Int("http.response.status_code", st.HTTPStatus),
		attribute.Int("netreq.redirects", len(st.Redirects)),
		attribute.Int("netreq.attempts", st.Attempts),
	)

	if outcome != nil {
		r.span.RecordError(outcome)
		r.span.SetStatus(codes.Error, st.Message)
		r.log.Warn().
			Err(outcome).
			Str("outcome", string(st.Code)).
			Int("attempts", st.Attempts).
			Int("nic_changes", st.NicChanges).
			Msg("Network request failed")
		return st.Message, outcome
	}

	r.log.Info().
		Str("outcome", string(st.Code)).
		Str("final_url", st.FinalURL).
		Int("redirects", len(st.Redirects)).
		Int("attempts", st.Attempts).
		Msg("Network request succeeded")
	return st.Message, nil
}

func statusText(req *request.NetworkRequest) string {
	if req.Status.ReturnCode != "" {
		return req.Status.ReturnCode
	}
	return fmt.Sprintf("%d", req.Status.HTTPStatus)
}

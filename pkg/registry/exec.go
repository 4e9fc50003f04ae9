package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/castrpc/pkg/apperr"
	"github.com/morezero/castrpc/pkg/cast"
	"github.com/morezero/castrpc/pkg/envelope"
	"github.com/morezero/castrpc/pkg/events"
)

const execLogPrefix = "registry:exec"

// unknownMethodLabel keeps unresolved names out of metric label values.
const unknownMethodLabel = "_unknown"

// Exec dispatches a call and returns the handler's value or an *apperr.Error.
// A context that is already done fails the call before the handler runs;
// after that, cancellation is left to the handler.
func (r *Registry) Exec(ctx context.Context, name string, input map[string]any, opts *CallOptions) (any, error) {
	v, _, aerr := r.exec(ctx, name, input, opts)
	if aerr != nil {
		return nil, aerr
	}
	return v, nil
}

// Call dispatches like Exec and shapes the outcome with the selected envelope
// strategy: the per-call override, then meta attached to the value, then the
// method default, then the registry default. An unknown override fails the
// call with a Validation error before the method is looked up.
func (r *Registry) Call(ctx context.Context, name string, input map[string]any, opts *CallOptions) envelope.Result {
	override := ""
	if opts != nil {
		override = opts.Envelope
	}
	if err := envelope.Validate(override); err != nil {
		r.logger.Warn(fmt.Sprintf("%s - %s rejected: %v", execLogPrefix, name, err))
		aerr := apperr.Validation.Wrap(err, fmt.Sprintf("unknown envelope %q", override))
		return envelope.Select("", nil, "", r.config.DefaultEnvelope).Failure(aerr)
	}

	v, e, aerr := r.exec(ctx, name, input, opts)
	methodDefault := ""
	if e != nil {
		methodDefault = e.method.Envelope
	}

	s := envelope.Select(override, v, methodDefault, r.config.DefaultEnvelope)
	if aerr != nil {
		return s.Failure(aerr)
	}
	return s.Success(v)
}

func (r *Registry) exec(ctx context.Context, name string, input map[string]any, opts *CallOptions) (any, *entry, *apperr.Error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &CallOptions{}
	}
	start := time.Now()
	id := opts.CallID
	if id == "" {
		id = uuid.NewString()
	}

	e, aerr := r.lookup(name)
	if aerr != nil {
		r.logger.Warn(fmt.Sprintf("%s - id=%s method not found: %s", execLogPrefix, id, name))
		r.complete(&Call{ID: id, Method: name}, unknownMethodLabel, aerr, false, start)
		return nil, nil, aerr
	}
	label := e.key()
	stub := &Call{ID: id, Method: e.method.Name, Version: e.method.Version}

	if err := ctx.Err(); err != nil {
		aerr := apperr.From(err)
		r.logger.Info(fmt.Sprintf("%s - id=%s method=%s not invoked: %v", execLogPrefix, id, label, err))
		r.complete(stub, label, aerr, false, start)
		return nil, e, aerr
	}

	p, err := r.prepare(e)
	if err != nil {
		aerr := apperr.Internal.Wrap(err, "Method preparation failed: "+label)
		r.complete(stub, label, aerr, false, start)
		return nil, e, aerr
	}

	if !e.limiter.allow() {
		aerr := apperr.TooManyRequests.WithDetail(map[string]any{
			"message": "Rate limit exceeded for " + label,
			"method":  e.method.Name,
			"limit":   e.limiter.rps,
			"burst":   e.limiter.burst,
		})
		r.metrics.RecordRateLimited(label)
		r.complete(stub, label, aerr, false, start)
		return nil, e, aerr
	}

	args, aerr := r.bind(e, p, input)
	if aerr != nil {
		r.logger.Info(fmt.Sprintf("%s - id=%s method=%s rejected input: %s", execLogPrefix, id, label, aerr.ReadableMessage))
		r.metrics.RecordCastFailure(label)
		r.complete(stub, label, aerr, false, start)
		return nil, e, aerr
	}

	call := newCall(ctx, id, e.method, opts.Env)
	r.logger.Debug(fmt.Sprintf("%s - id=%s method=%s dispatching", execLogPrefix, id, label))
	go r.run(call, label, p.handler, args, start)

	<-call.cell.done
	v, aerr, _ := call.cell.snapshot()
	return v, e, aerr
}

// run invokes the handler, runs the hooks most-recent-first, then settles the
// cell unless the handler or a hook already did.
func (r *Registry) run(call *Call, label string, h Handler, args Args, start time.Time) {
	value, herr := r.invoke(call, label, h, args)

	for _, hk := range call.seal() {
		r.runHook(call, label, hk, value, herr)
	}

	call.cell.set(value, herr, false)
	_, aerr, early := call.cell.snapshot()
	r.complete(call, label, aerr, early, start)
}

func (r *Registry) invoke(call *Call, label string, h Handler, args Args) (value any, aerr *apperr.Error) {
	defer func() {
		if rec := recover(); rec != nil {
			aerr = apperr.FromPanic(rec)
			value = nil
			r.logger.Error(fmt.Sprintf("%s - id=%s method=%s handler panicked: %v", execLogPrefix, call.ID, label, rec))
		}
	}()

	v, err := h(call, args)
	if err != nil {
		return nil, normalizeError(err)
	}
	return v, nil
}

// normalizeError turns anything a handler returns into an application error.
// Cast failures raised inside handlers become Validation errors.
func normalizeError(err error) *apperr.Error {
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	var ce *cast.Error
	if errors.As(err, &ce) {
		detail := ce.Fields()
		detail["message"] = "Validation failed"
		detail["readableMessage"] = ce.Error()
		detail["cause"] = ce
		return apperr.Validation.WithDetail(detail)
	}
	return apperr.From(err)
}

func (r *Registry) runHook(call *Call, label string, h hook, value any, herr *apperr.Error) {
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = apperr.FromPanic(rec)
			}
		}()
		switch h.kind {
		case HookOnSuccess:
			if herr == nil {
				err = h.onSuccess(call, value)
			}
		case HookOnFailure:
			if herr != nil {
				err = h.onFailure(call, herr)
			}
		case HookFinally:
			err = h.finally(call, value, herr)
		}
	}()
	if err == nil {
		return
	}

	r.logger.Warn(fmt.Sprintf("%s - id=%s method=%s %s hook failed: %v", execLogPrefix, call.ID, label, h.kind, err))
	r.metrics.RecordHookFailure(label, h.kind)
	event := &events.HookFailedEvent{
		CallID:    call.ID,
		Method:    call.Method,
		Hook:      h.kind,
		Error:     err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if perr := r.publisher.PublishHookFailed(context.Background(), event); perr != nil {
		r.logger.Warn(fmt.Sprintf("%s - failed to publish hook event: %v", execLogPrefix, perr))
	}
}

// complete records metrics and emits the call event.
func (r *Registry) complete(call *Call, label string, aerr *apperr.Error, early bool, start time.Time) {
	d := time.Since(start)
	outcome := events.OutcomeSuccess
	if aerr != nil {
		outcome = events.OutcomeFailure
	}
	r.metrics.RecordCall(label, outcome, d)

	event := &events.CallCompletedEvent{
		CallID:      call.ID,
		Method:      call.Method,
		Version:     call.Version,
		Outcome:     outcome,
		DurationMs:  d.Milliseconds(),
		EarlyReturn: early,
		Env:         r.config.Env,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if aerr != nil {
		event.ErrorName = aerr.Name
		event.Status = aerr.Status
	}
	if err := r.publisher.PublishCallCompleted(context.Background(), event); err != nil {
		r.logger.Warn(fmt.Sprintf("%s - failed to publish call event: %v", execLogPrefix, err))
	}
}

// Async adapts a channel-returning handler. The first outcome received settles
// the call; a nil or closed channel is an Internal error.
func Async(fn func(call *Call, args Args) <-chan Outcome) Handler {
	return func(call *Call, args Args) (any, error) {
		ch := fn(call, args)
		if ch == nil {
			return nil, apperr.Internal.New("async handler returned no channel")
		}
		o, ok := <-ch
		if !ok {
			return nil, apperr.Internal.New("async handler closed its channel without an outcome")
		}
		return o.Value, o.Err
	}
}

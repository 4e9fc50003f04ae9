package registry

import (
	"context"
	"sync"

	"github.com/morezero/castrpc/pkg/apperr"
)

// Hook names, as reported in logs, metrics and HookFailedEvent.
const (
	HookOnSuccess = "onSuccess"
	HookOnFailure = "onFailure"
	HookFinally   = "finally"
)

// Call is the per-invocation context handed to a handler as its first argument.
// It is safe to use from goroutines the handler starts.
type Call struct {
	ID      string
	Method  string
	Version string
	// Env is the caller-supplied environment.
	Env map[string]any

	ctx  context.Context
	cell *resultCell

	mu     sync.Mutex
	hooks  []hook
	sealed bool
}

type hook struct {
	kind      string
	onSuccess func(*Call, any) error
	onFailure func(*Call, *apperr.Error) error
	finally   func(*Call, any, *apperr.Error) error
}

func newCall(ctx context.Context, id string, m Method, env map[string]any) *Call {
	if env == nil {
		env = map[string]any{}
	}
	return &Call{
		ID:      id,
		Method:  m.Name,
		Version: m.Version,
		Env:     env,
		ctx:     ctx,
		cell:    newResultCell(),
	}
}

// Context returns the caller's context. Handlers decide whether to honor its
// cancellation.
func (c *Call) Context() context.Context {
	return c.ctx
}

// OnSuccess registers a hook that runs after the handler succeeds.
func (c *Call) OnSuccess(fn func(call *Call, value any) error) {
	c.addHook(hook{kind: HookOnSuccess, onSuccess: fn})
}

// OnFailure registers a hook that runs after the handler fails.
func (c *Call) OnFailure(fn func(call *Call, err *apperr.Error) error) {
	c.addHook(hook{kind: HookOnFailure, onFailure: fn})
}

// Finally registers a hook that runs after the handler settles either way.
func (c *Call) Finally(fn func(call *Call, value any, err *apperr.Error) error) {
	c.addHook(hook{kind: HookFinally, finally: fn})
}

// addHook drops hooks registered after the handler returned.
func (c *Call) addHook(h hook) {
	if h.onSuccess == nil && h.onFailure == nil && h.finally == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return
	}
	c.hooks = append(c.hooks, h)
}

// Return delivers v to the caller now. Only the first Return or Fail has an
// effect; it reports whether this one did. The handler and its hooks keep
// running.
func (c *Call) Return(v any) bool {
	return c.cell.set(v, nil, true)
}

// Fail delivers err to the caller now, like Return.
func (c *Call) Fail(err error) bool {
	if err == nil {
		err = apperr.Internal.New("Unknown error")
	}
	return c.cell.set(nil, apperr.From(err), true)
}

// Settled reports whether the caller already has its result.
func (c *Call) Settled() bool {
	return c.cell.isSet()
}

// seal stops hook registration and returns the hooks most-recent-first.
func (c *Call) seal() []hook {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	out := make([]hook, len(c.hooks))
	for i, h := range c.hooks {
		out[len(c.hooks)-1-i] = h
	}
	return out
}

// resultCell is written at most once; done closes on the write.
type resultCell struct {
	mu      sync.Mutex
	done    chan struct{}
	value   any
	err     *apperr.Error
	early   bool
	written bool
}

func newResultCell() *resultCell {
	return &resultCell{done: make(chan struct{})}
}

func (r *resultCell) set(v any, err *apperr.Error, early bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.written {
		return false
	}
	r.value, r.err, r.early, r.written = v, err, early, true
	close(r.done)
	return true
}

func (r *resultCell) isSet() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

func (r *resultCell) snapshot() (any, *apperr.Error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.err, r.early
}

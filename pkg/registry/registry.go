package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/morezero/castrpc/pkg/envelope"
	"github.com/morezero/castrpc/pkg/events"
	"github.com/morezero/castrpc/pkg/metrics"
	"github.com/morezero/castrpc/pkg/semver"
)

const logPrefix = "registry:registry"

// Config holds registry configuration.
type Config struct {
	// DefaultEnvelope is the strategy used when neither the call, the outcome
	// nor the method picks one.
	DefaultEnvelope string
	// Env labels emitted call events, e.g. "production".
	Env string
	// CallRateLimit and CallBurst apply to methods without their own RateLimit.
	// Zero disables throttling.
	CallRateLimit float64
	CallBurst     int
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		DefaultEnvelope: envelope.PassthroughName,
		Env:             "production",
	}
}

// NewRegistryParams holds parameters for NewRegistry.
type NewRegistryParams struct {
	Publisher events.EventPublisher
	Metrics   metrics.Recorder
	Logger    *slog.Logger
	Config    Config
}

// Registry stores methods and dispatches calls to them. It is safe for
// concurrent use; registration may continue after Finalize.
type Registry struct {
	publisher events.EventPublisher
	metrics   metrics.Recorder
	logger    *slog.Logger
	config    Config

	mu        sync.RWMutex
	names     map[string]string   // name or alias -> canonical name
	versions  map[string][]*entry // canonical name -> registered versions
	finalized bool
}

// NewRegistry creates a new Registry instance.
func NewRegistry(params NewRegistryParams) *Registry {
	cfg := params.Config
	if cfg.DefaultEnvelope == "" {
		cfg.DefaultEnvelope = envelope.PassthroughName
	}

	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	rec := params.Metrics
	if rec == nil {
		rec = metrics.NewNoOpCollector()
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		publisher: pub,
		metrics:   rec,
		logger:    logger,
		config:    cfg,
		names:     make(map[string]string),
		versions:  make(map[string][]*entry),
	}
}

// Config returns the effective configuration.
func (r *Registry) Config() Config {
	return r.config
}

// Preparation states of an entry.
const (
	statePending int32 = iota
	statePrepared
	stateFailed
)

// entry is one registered method version.
type entry struct {
	method  Method
	limiter *limiter

	once     sync.Once
	prepared *prepared
	prepErr  error
	state    atomic.Int32
}

func (e *entry) key() string {
	return semver.BuildMethodRef(e.method.Name, e.method.Version)
}

// Register adds a method. Name, alias and name@version collisions fail with
// ErrDuplicateMethod. Once the registry is finalized the method is prepared
// before it becomes visible.
func (r *Registry) Register(m Method) error {
	if err := validateMethod(m); err != nil {
		return err
	}
	m.Aliases = append([]string(nil), m.Aliases...)
	m.Params = append([]Param(nil), m.Params...)

	e := &entry{method: m, limiter: r.newLimiter(m.RateLimit)}

	r.mu.RLock()
	finalized := r.finalized
	r.mu.RUnlock()
	if finalized {
		if _, err := r.prepare(e); err != nil {
			return err
		}
	}

	r.mu.Lock()
	if err := r.checkConflicts(m); err != nil {
		r.mu.Unlock()
		return err
	}
	r.names[m.Name] = m.Name
	for _, alias := range m.Aliases {
		r.names[alias] = m.Name
	}
	r.versions[m.Name] = append(r.versions[m.Name], e)
	count := r.countLocked()
	finalizedSince := !finalized && r.finalized
	r.mu.Unlock()

	// Finalize ran between the check above and the insert, so its pass missed e.
	// Failures are logged by prepare and surface through Health.
	if finalizedSince {
		_, _ = r.prepare(e)
	}

	r.metrics.SetRegisteredMethods(count)
	r.logger.Info(fmt.Sprintf("%s - registered method=%s aliases=%v", logPrefix, e.key(), m.Aliases))

	event := &events.MethodRegisteredEvent{
		Method:     m.Name,
		Version:    m.Version,
		Aliases:    m.Aliases,
		Deprecated: m.Deprecated,
		Envelope:   m.Envelope,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.publisher.PublishRegistered(context.Background(), event); err != nil {
		r.logger.Warn(fmt.Sprintf("%s - failed to publish registered event for %s: %v", logPrefix, e.key(), err))
	}
	return nil
}

// MustRegister is Register for static tables; it panics on error.
func (r *Registry) MustRegister(methods ...Method) {
	for _, m := range methods {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

func validateMethod(m Method) error {
	if !semver.ValidateMethodName(m.Name) {
		return fmt.Errorf("%s - method name %q: %w", logPrefix, m.Name, ErrInvalidMethod)
	}
	for _, alias := range m.Aliases {
		if !semver.ValidateMethodName(alias) || alias == m.Name {
			return fmt.Errorf("%s - %s alias %q: %w", logPrefix, m.Name, alias, ErrInvalidMethod)
		}
	}
	if m.Version != "" {
		if err := semver.ValidateVersion(m.Version); err != nil {
			return fmt.Errorf("%s - %s version: %v: %w", logPrefix, m.Name, err, ErrInvalidMethod)
		}
	}
	if (m.Handler == nil) == (m.Resolve == nil) {
		return fmt.Errorf("%s - %s needs exactly one of Handler or Resolve: %w", logPrefix, m.Name, ErrInvalidMethod)
	}
	if m.Envelope != "" {
		if err := envelope.Validate(m.Envelope); err != nil {
			return fmt.Errorf("%s - %s: %v: %w", logPrefix, m.Name, err, ErrInvalidMethod)
		}
	}
	if m.RateLimit != nil && (m.RateLimit.PerSecond < 0 || m.RateLimit.Burst < 0) {
		return fmt.Errorf("%s - %s rate limit must not be negative: %w", logPrefix, m.Name, ErrInvalidMethod)
	}

	seen := make(map[string]bool, len(m.Params))
	rest := 0
	for _, p := range m.Params {
		if p.Name == "" {
			return fmt.Errorf("%s - %s has an unnamed parameter: %w", logPrefix, m.Name, ErrInvalidMethod)
		}
		if seen[p.Name] {
			return fmt.Errorf("%s - %s parameter %q declared twice: %w", logPrefix, m.Name, p.Name, ErrInvalidMethod)
		}
		seen[p.Name] = true
		if p.Rest {
			rest++
		}
		if p.WholeInput && p.Path != "" {
			return fmt.Errorf("%s - %s parameter %q sets both Path and WholeInput: %w", logPrefix, m.Name, p.Name, ErrInvalidMethod)
		}
	}
	if rest > 1 {
		return fmt.Errorf("%s - %s declares %d rest parameters: %w", logPrefix, m.Name, rest, ErrInvalidMethod)
	}
	return nil
}

// checkConflicts must be called with r.mu held.
func (r *Registry) checkConflicts(m Method) error {
	if owner, ok := r.names[m.Name]; ok && owner != m.Name {
		return fmt.Errorf("%s - %s is an alias of %s: %w", logPrefix, m.Name, owner, ErrDuplicateMethod)
	}
	for _, existing := range r.versions[m.Name] {
		if existing.method.Version == m.Version {
			return fmt.Errorf("%s - %s: %w", logPrefix, semver.BuildMethodRef(m.Name, m.Version), ErrDuplicateMethod)
		}
	}
	for _, alias := range m.Aliases {
		if owner, ok := r.names[alias]; ok && owner != m.Name {
			return fmt.Errorf("%s - alias %s already names %s: %w", logPrefix, alias, owner, ErrDuplicateMethod)
		}
	}
	return nil
}

func (r *Registry) countLocked() int {
	n := 0
	for _, list := range r.versions {
		n += len(list)
	}
	return n
}

// Finalize prepares every registered method. Later registrations are prepared
// immediately. Preparation failures are joined into the returned error; the
// failing methods stay registered and fail each call with an Internal error.
func (r *Registry) Finalize() error {
	r.mu.Lock()
	r.finalized = true
	all := r.entriesLocked()
	r.mu.Unlock()

	var errs []error
	for _, e := range all {
		if _, err := r.prepare(e); err != nil {
			errs = append(errs, err)
		}
	}

	r.logger.Info(fmt.Sprintf("%s - finalized methods=%d failed=%d", logPrefix, len(all), len(errs)))
	return errors.Join(errs...)
}

// Finalized reports whether Finalize has been called.
func (r *Registry) Finalized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finalized
}

// entriesLocked returns all entries sorted by name then version.
func (r *Registry) entriesLocked() []*entry {
	var all []*entry
	for _, list := range r.versions {
		all = append(all, list...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].method.Name != all[j].method.Name {
			return all[i].method.Name < all[j].method.Name
		}
		return semver.Compare(all[i].method.Version, all[j].method.Version) < 0
	})
	return all
}

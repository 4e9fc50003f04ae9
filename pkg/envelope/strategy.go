package envelope

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/morezero/castrpc/pkg/apperr"
)

// Strategy names.
const (
	PassthroughName = "passthrough"
	IntegrityName   = "integrity"
)

const (
	defaultSuccessCode = 200
	defaultFailureCode = 500
	defaultFailStatus  = 50000
	unknownMessage     = "Unknown error"
)

// Result is the transport-neutral outcome of a call.
type Result struct {
	Meta      Meta          `json:"meta"`
	Output    any           `json:"output"`
	Succeeded bool          `json:"succeeded"`
	Err       *apperr.Error `json:"error,omitempty"`
}

// Strategy renders a settled call outcome into a Result.
type Strategy interface {
	Name() string
	Success(value any) Result
	Failure(err error) Result
}

// Passthrough exports the value and reuses its metadata.
var Passthrough Strategy = passthrough{}

// Integrity wraps non-binary output as {code, status, data, meta?}.
var Integrity Strategy = integrity{}

var (
	strategiesMu sync.RWMutex
	strategies   = map[string]Strategy{
		PassthroughName: Passthrough,
		IntegrityName:   Integrity,
	}
)

// Register makes a custom strategy selectable by name.
func Register(s Strategy) {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	strategies[s.Name()] = s
}

// Lookup returns the strategy registered under name.
func Lookup(name string) (Strategy, bool) {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	s, ok := strategies[name]
	return s, ok
}

// Names lists registered strategy names.
func Names() []string {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	out := make([]string, 0, len(strategies))
	for name := range strategies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type passthrough struct{}

func (passthrough) Name() string { return PassthroughName }

func (passthrough) Success(value any) Result {
	meta, _ := MetaOf(value)
	meta = withDefaultCode(meta, defaultSuccessCode)
	meta.Envelope = PassthroughName
	return Result{Meta: meta, Output: Export(value), Succeeded: true}
}

func (passthrough) Failure(err error) Result {
	ae := normalize(err)
	meta := failureMeta(ae)
	meta.Envelope = PassthroughName
	return Result{Meta: meta, Output: ae.ToObject(), Err: ae}
}

type integrity struct{}

func (integrity) Name() string { return IntegrityName }

func (integrity) Success(value any) Result {
	meta, _ := MetaOf(value)
	meta = withDefaultCode(meta, defaultSuccessCode)
	meta.Envelope = IntegrityName
	data := Export(value)
	if isBinary(data) {
		if meta.ContentType == "" {
			meta.ContentType = "application/octet-stream"
		}
		return Result{Meta: meta, Output: data, Succeeded: true}
	}
	if meta.ContentType == "" {
		meta.ContentType = "application/json"
	}
	wrapped := map[string]any{
		"code":   meta.HTTPCode,
		"status": meta.Status,
		"data":   data,
	}
	if len(meta.Extra) > 0 {
		wrapped["meta"] = Export(meta.Extra)
	}
	return Result{Meta: meta, Output: wrapped, Succeeded: true}
}

func (integrity) Failure(err error) Result {
	ae := normalize(err)
	meta := failureMeta(ae)
	meta.Envelope = IntegrityName
	if meta.ContentType == "" {
		meta.ContentType = "application/json"
	}
	obj := ae.ToObject()
	obj["code"] = meta.HTTPCode
	obj["status"] = meta.Status
	if msg, _ := obj["message"].(string); msg == "" {
		obj["message"] = unknownMessage
	}
	return Result{Meta: meta, Output: obj, Err: ae}
}

func normalize(err error) *apperr.Error {
	if err == nil {
		return apperr.Internal.New(unknownMessage)
	}
	return apperr.From(err)
}

func withDefaultCode(m Meta, code int) Meta {
	m = PatchMeta(m)
	if m.HTTPCode == 0 {
		m.HTTPCode = code
		m.Status = code * 100
	}
	return m
}

func failureMeta(ae *apperr.Error) Meta {
	m := PatchMeta(Meta{HTTPCode: ae.Code(), Status: ae.Status})
	if m.HTTPCode == 0 {
		m.HTTPCode = defaultFailureCode
	}
	if m.Status == 0 {
		m.Status = defaultFailStatus
	}
	return m
}

func isBinary(v any) bool {
	switch v.(type) {
	case []byte, io.Reader:
		return true
	}
	return false
}

// Select picks the strategy by precedence: explicit override, then the envelope
// named in meta attached to the outcome value, then the method default, then the
// registry default. Unknown names are skipped; Passthrough is the last resort.
func Select(override string, outcome any, methodDefault, registryDefault string) Strategy {
	candidates := []string{override}
	if meta, ok := MetaOf(outcome); ok {
		candidates = append(candidates, meta.Envelope)
	}
	candidates = append(candidates, methodDefault, registryDefault)
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if s, ok := Lookup(name); ok {
			return s
		}
	}
	return Passthrough
}

// Validate reports whether name is a registered strategy.
func Validate(name string) error {
	if name == "" {
		return nil
	}
	if _, ok := Lookup(name); !ok {
		return fmt.Errorf("envelope: unknown strategy %q (known: %v)", name, Names())
	}
	return nil
}

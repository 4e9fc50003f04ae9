package cast

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Step is one segment of an access path: a field name or a slice index.
type Step struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s Step) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Path is a parsed access path such as "user.addresses[0].zip". The zero Path
// addresses the whole input value.
type Path struct {
	steps []Step
}

// ParsePath parses a dotted/indexed path. Quoted keys ("a['x.y']") are supported for
// names containing dots or brackets.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, nil
	}
	var steps []Step
	i := 0
	expectKey := true
	for i < len(s) {
		switch c := s[i]; {
		case c == '.':
			if expectKey {
				return Path{}, fmt.Errorf("cast: path %q: empty segment at %d", s, i)
			}
			expectKey = true
			i++
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return Path{}, fmt.Errorf("cast: path %q: unclosed bracket at %d", s, i)
			}
			inner := s[i+1 : i+end]
			// quoted keys may contain ']' only if quoted; re-scan for the matching quote.
			if len(inner) > 0 && (inner[0] == '\'' || inner[0] == '"') {
				q := inner[0]
				closeQ := strings.IndexByte(s[i+2:], q)
				if closeQ < 0 || i+2+closeQ+1 >= len(s) || s[i+2+closeQ+1] != ']' {
					return Path{}, fmt.Errorf("cast: path %q: bad quoted key at %d", s, i)
				}
				steps = append(steps, Step{Key: s[i+2 : i+2+closeQ]})
				i = i + 2 + closeQ + 2
			} else {
				n, err := strconv.Atoi(strings.TrimSpace(inner))
				if err != nil || n < 0 {
					return Path{}, fmt.Errorf("cast: path %q: bad index %q", s, inner)
				}
				steps = append(steps, Step{Index: n, IsIndex: true})
				i += end + 1
			}
			expectKey = false
		default:
			if !expectKey {
				return Path{}, fmt.Errorf("cast: path %q: unexpected %q at %d", s, c, i)
			}
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				j++
			}
			steps = append(steps, Step{Key: s[i:j]})
			i = j
			expectKey = false
		}
	}
	if expectKey {
		return Path{}, fmt.Errorf("cast: path %q: trailing dot", s)
	}
	return Path{steps: steps}, nil
}

// MustPath is ParsePath that panics on malformed input. For descriptors built at startup.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// KeyPath returns a single-step path addressing one key verbatim.
func KeyPath(key string) Path {
	return Path{steps: []Step{{Key: key}}}
}

// IsZero reports whether the path addresses the whole input.
func (p Path) IsZero() bool {
	return len(p.steps) == 0
}

// Steps returns a copy of the path's steps.
func (p Path) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Root returns the top-level key the path reads from, if it starts with a key.
func (p Path) Root() (string, bool) {
	if len(p.steps) == 0 || p.steps[0].IsIndex {
		return "", false
	}
	return p.steps[0].Key, true
}

// Prepend returns a new path with steps placed before p's own.
func (p Path) Prepend(steps ...Step) Path {
	out := make([]Step, 0, len(steps)+len(p.steps))
	out = append(out, steps...)
	out = append(out, p.steps...)
	return Path{steps: out}
}

// Concat returns p followed by q.
func (p Path) Concat(q Path) Path {
	return q.Prepend(p.steps...)
}

func (p Path) String() string {
	var b strings.Builder
	for i, s := range p.steps {
		switch {
		case s.IsIndex:
			b.WriteString(s.String())
		case needsQuoting(s.Key):
			b.WriteString("['" + s.Key + "']")
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s.Key)
		}
	}
	return b.String()
}

func needsQuoting(key string) bool {
	return key == "" || strings.ContainsAny(key, ".[]'\"")
}

// Lookup resolves the path against v. The boolean is false when any step is absent.
func (p Path) Lookup(v any) (any, bool) {
	cur := v
	for _, s := range p.steps {
		next, ok := lookupStep(cur, s)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func lookupStep(v any, s Step) (any, bool) {
	if s.IsIndex {
		switch t := v.(type) {
		case []any:
			if s.Index < len(t) {
				return t[s.Index], true
			}
			return nil, false
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			if s.Index < rv.Len() {
				return rv.Index(s.Index).Interface(), true
			}
		}
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		val, ok := t[s.Key]
		return val, ok
	case *Record:
		return t.Get(s.Key)
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		val := rv.MapIndex(reflect.ValueOf(s.Key).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true
	}
	return nil, false
}

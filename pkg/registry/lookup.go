package registry

import (
	"github.com/morezero/castrpc/pkg/apperr"
	"github.com/morezero/castrpc/pkg/semver"
)

// lookup resolves a method reference: a name, an alias, or either followed by
// "@range". Without a range, an unversioned registration wins; otherwise the
// latest stable version of the highest major is picked.
func (r *Registry) lookup(ref string) (*entry, *apperr.Error) {
	parsed, err := semver.ParseMethodRef(ref)
	if err != nil {
		return nil, apperr.MethodNotFound.WithDetail(map[string]any{
			"message": "Method not found: " + ref,
			"method":  ref,
			"cause":   err,
		})
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.names[parsed.Name]
	if !ok {
		return nil, notFound(ref)
	}
	list := r.versions[canonical]

	if !parsed.Versioned() {
		for _, e := range list {
			if e.method.Version == "" {
				return e, nil
			}
		}
	}

	candidates := make([]semver.Candidate, 0, len(list))
	byKey := make(map[string]*entry, len(list))
	for _, e := range list {
		if e.method.Version == "" {
			continue
		}
		c, err := semver.NewCandidate(e.key(), e.method.Version, e.method.Deprecated)
		if err != nil {
			continue
		}
		candidates = append(candidates, c)
		byKey[c.Key] = e
	}

	best := semver.ResolveVersion(semver.ResolveVersionParams{
		Candidates: candidates,
		Range:      parsed.Range,
	})
	if best == nil {
		return nil, notFound(ref)
	}
	return byKey[best.Key], nil
}

func notFound(ref string) *apperr.Error {
	return apperr.MethodNotFound.WithDetail(map[string]any{
		"message": "Method not found: " + ref,
		"method":  ref,
	})
}

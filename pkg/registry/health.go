package registry

import (
	"time"
)

// Health reports whether the registry is finalized and every method prepared.
func (r *Registry) Health() *HealthOutput {
	r.mu.RLock()
	finalized := r.finalized
	all := r.entriesLocked()
	r.mu.RUnlock()

	var failed []string
	for _, e := range all {
		if e.state.Load() == stateFailed {
			failed = append(failed, e.key())
		}
	}

	status := "healthy"
	switch {
	case len(failed) > 0:
		status = "unhealthy"
	case !finalized:
		status = "starting"
	}

	return &HealthOutput{
		Status: status,
		Checks: HealthChecks{
			Finalized: finalized,
			Methods:   len(all),
			Failed:    failed,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

package registry

import (
	"golang.org/x/time/rate"
)

// limiter throttles one method. A nil limiter allows everything.
type limiter struct {
	limiter *rate.Limiter
	rps     float64
	burst   int
}

func (r *Registry) newLimiter(rl *RateLimit) *limiter {
	rps, burst := r.config.CallRateLimit, r.config.CallBurst
	if rl != nil {
		rps, burst = rl.PerSecond, rl.Burst
	}
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	return &limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
	}
}

func (l *limiter) allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

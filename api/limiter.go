package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// pruneThreshold is the pool size above which refilled limiters are dropped
// before a new one is added.
const pruneThreshold = 4096

// limiterPool holds one token bucket per session id. A nil pool allows
// everything.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &limiterPool{
		m:     make(map[string]*rate.Limiter),
		limit: rate.Limit(rps),
		burst: burst,
	}
}

// Allow reports whether key may proceed now, consuming a token if so.
func (p *limiterPool) Allow(key string) bool {
	if p == nil {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.m[key]
	if !ok {
		if len(p.m) >= pruneThreshold {
			p.prune()
		}
		l = rate.NewLimiter(p.limit, p.burst)
		p.m[key] = l
	}
	return l.Allow()
}

// prune drops limiters with a full bucket. They behave exactly like new ones.
func (p *limiterPool) prune() {
	for k, l := range p.m {
		if l.Tokens() >= float64(p.burst) {
			delete(p.m, k)
		}
	}
}

func (p *limiterPool) size() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

package extractor

import (
	"sync"
	"time"

	"github.com/transcriptapi/core/internal/infrastructure/metrics"
)

// Proxy is one endpoint in the rotation pool.
type Proxy struct {
	Endpoint      string
	Credentials   string
	failureCount  int
	cooldownUntil time.Time
}

// ProxyRotator selects among a pool of proxies loaded at startup, tracking
// failures and cooling down proxies that cross max_failures (spec §4.8).
type ProxyRotator struct {
	mu          sync.Mutex
	proxies     []*Proxy
	maxFailures int
	cooldown    time.Duration
}

// NewProxyRotator builds a rotator over the given pool.
func NewProxyRotator(proxies []Proxy, maxFailures int, cooldown time.Duration) *ProxyRotator {
	pool := make([]*Proxy, len(proxies))
	for i := range proxies {
		p := proxies[i]
		pool[i] = &p
	}
	return &ProxyRotator{proxies: pool, maxFailures: maxFailures, cooldown: cooldown}
}

// Select picks the proxy with the lowest failure count whose cooldown has
// passed, resetting failure counters for proxies whose cooldown just
// expired. Returns false if the pool is empty or every proxy is cooling
// down.
func (r *ProxyRotator) Select() (*Proxy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var best *Proxy
	for _, p := range r.proxies {
		if !p.cooldownUntil.IsZero() && now.Before(p.cooldownUntil) {
			continue
		}
		if !p.cooldownUntil.IsZero() && !now.Before(p.cooldownUntil) {
			p.failureCount = 0
			p.cooldownUntil = time.Time{}
		}
		if best == nil || p.failureCount < best.failureCount {
			best = p
		}
	}

	r.reportHealth()
	if best == nil {
		return nil, false
	}
	return best, true
}

// RecordFailure increments a proxy's failure count, placing it in cooldown
// once it reaches max_failures.
func (r *ProxyRotator) RecordFailure(p *Proxy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.failureCount++
	if p.failureCount >= r.maxFailures {
		p.cooldownUntil = time.Now().Add(r.cooldown)
	}
	r.reportHealth()
}

// RecordSuccess clears a proxy's failure count.
func (r *ProxyRotator) RecordSuccess(p *Proxy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.failureCount = 0
	p.cooldownUntil = time.Time{}
	r.reportHealth()
}

// Health reports the number of proxies currently out of cooldown against
// the pool size.
func (r *ProxyRotator) Health() (healthy, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.healthyLocked(), len(r.proxies)
}

func (r *ProxyRotator) healthyLocked() int {
	now := time.Now()
	healthy := 0
	for _, p := range r.proxies {
		if p.cooldownUntil.IsZero() || !now.Before(p.cooldownUntil) {
			healthy++
		}
	}
	return healthy
}

// reportHealth publishes the aggregate pool health gauge. Caller must hold r.mu.
func (r *ProxyRotator) reportHealth() {
	if len(r.proxies) == 0 {
		metrics.ProxyPoolHealthy.Set(0)
		return
	}
	metrics.ProxyPoolHealthy.Set(float64(r.healthyLocked()))
}

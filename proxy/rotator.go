package proxy

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/use-agent/shopee-scraper/config"
)

// Rotator picks the proxy for each session. Every endpoint is tried once,
// in random order, before any is reused; endpoints that failed are skipped
// until their cooldown expires.
//
// Endpoints themselves are never modified; Next hands out copies.
type Rotator struct {
	endpoints []config.ProxyEndpoint
	cooldown  time.Duration
	intn      func(n int) int

	mu    sync.Mutex
	tried map[int]struct{}

	failed sync.Map // server (string) -> expiry (time.Time)
}

// NewRotator creates a Rotator over endpoints.
func NewRotator(endpoints []config.ProxyEndpoint, cooldown time.Duration) *Rotator {
	return &Rotator{
		endpoints: endpoints,
		cooldown:  cooldown,
		intn:      rand.IntN,
		tried:     make(map[int]struct{}, len(endpoints)),
	}
}

// Len returns the number of configured endpoints.
func (r *Rotator) Len() int { return len(r.endpoints) }

// Next returns the proxy for a new session, or nil to connect directly when
// no proxies are configured. When every endpoint is cooling down the
// cooldown is ignored rather than falling back to a direct connection.
func (r *Rotator) Next() *config.ProxyEndpoint {
	if len(r.endpoints) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.candidates(true)
	if len(candidates) == 0 {
		// Cycle complete: start a new one.
		clear(r.tried)
		candidates = r.candidates(true)
	}
	if len(candidates) == 0 {
		candidates = r.candidates(false)
	}

	i := candidates[r.intn(len(candidates))]
	r.tried[i] = struct{}{}
	ep := r.endpoints[i]
	return &ep
}

func (r *Rotator) candidates(skipCooling bool) []int {
	now := time.Now()
	out := make([]int, 0, len(r.endpoints))
	for i, ep := range r.endpoints {
		if _, done := r.tried[i]; done && skipCooling {
			continue
		}
		if skipCooling && r.cooling(ep.Server, now) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (r *Rotator) cooling(server string, now time.Time) bool {
	v, ok := r.failed.Load(server)
	if !ok {
		return false
	}
	if now.After(v.(time.Time)) {
		r.failed.Delete(server)
		return false
	}
	return true
}

// MarkFailed puts the endpoint on cooldown.
func (r *Rotator) MarkFailed(ep *config.ProxyEndpoint) {
	if ep == nil || r.cooldown <= 0 {
		return
	}
	r.failed.Store(ep.Server, time.Now().Add(r.cooldown))
	slog.Warn("proxy placed on cooldown", "server", ep.Server, "cooldown", r.cooldown.String())
}

// MarkHealthy clears any cooldown on the endpoint.
func (r *Rotator) MarkHealthy(ep *config.ProxyEndpoint) {
	if ep == nil {
		return
	}
	r.failed.Delete(ep.Server)
}

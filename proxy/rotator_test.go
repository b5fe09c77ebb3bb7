package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shopee-scraper/config"
)

func endpoints(servers ...string) []config.ProxyEndpoint {
	out := make([]config.ProxyEndpoint, len(servers))
	for i, s := range servers {
		out[i] = config.ProxyEndpoint{Server: s}
	}
	return out
}

func TestNextWithoutProxiesIsDirect(t *testing.T) {
	r := NewRotator(nil, time.Minute)
	assert.Nil(t, r.Next())
	assert.Zero(t, r.Len())
}

func TestNextTriesEveryEndpointBeforeReuse(t *testing.T) {
	r := NewRotator(endpoints("a:1", "b:1", "c:1"), time.Minute)

	seen := map[string]int{}
	for i := 0; i < 3; i++ {
		seen[r.Next().Server]++
	}
	assert.Equal(t, map[string]int{"a:1": 1, "b:1": 1, "c:1": 1}, seen)

	// A new cycle starts once all have been used.
	require.NotNil(t, r.Next())
}

func TestFailedEndpointIsSkipped(t *testing.T) {
	r := NewRotator(endpoints("a:1", "b:1"), time.Minute)
	r.intn = func(int) int { return 0 }

	r.MarkFailed(&config.ProxyEndpoint{Server: "a:1"})
	for i := 0; i < 4; i++ {
		assert.Equal(t, "b:1", r.Next().Server)
	}

	r.MarkHealthy(&config.ProxyEndpoint{Server: "a:1"})
	r.tried = map[int]struct{}{}
	assert.Equal(t, "a:1", r.Next().Server)
}

func TestAllCoolingStillReturnsProxy(t *testing.T) {
	r := NewRotator(endpoints("a:1"), time.Minute)
	r.MarkFailed(&config.ProxyEndpoint{Server: "a:1"})

	ep := r.Next()
	require.NotNil(t, ep, "must not silently fall back to a direct connection")
	assert.Equal(t, "a:1", ep.Server)
}

func TestCooldownExpires(t *testing.T) {
	r := NewRotator(endpoints("a:1", "b:1"), time.Millisecond)
	r.intn = func(int) int { return 0 }
	r.MarkFailed(&config.ProxyEndpoint{Server: "a:1"})
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, "a:1", r.Next().Server)
}

func TestNextReturnsCopies(t *testing.T) {
	eps := endpoints("a:1")
	r := NewRotator(eps, time.Minute)

	ep := r.Next()
	ep.Server = "mutated"
	assert.Equal(t, "a:1", eps[0].Server)
}

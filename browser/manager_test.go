package browser_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shopee-scraper/browser"
	"github.com/use-agent/shopee-scraper/browser/browsertest"
	"github.com/use-agent/shopee-scraper/config"
	"github.com/use-agent/shopee-scraper/models"
)

func newManager(ceiling int, l browser.Launcher) (*browser.Manager, *browser.Limiter) {
	limiter := browser.NewLimiter(ceiling)
	return browser.NewManager(limiter, l, config.ProxyConfig{DialTimeout: time.Second}, "/ext"), limiter
}

func TestAcquireReleaseFreesSlot(t *testing.T) {
	launcher := &browsertest.Launcher{}
	m, limiter := newManager(1, launcher)

	s, err := m.Acquire(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, limiter.InUse())
	assert.Equal(t, "/ext", launcher.Launches()[0].ExtensionDir)

	m.Release(s)
	assert.True(t, s.Released())
	assert.Equal(t, 0, limiter.InUse())

	s2, err := m.Acquire(context.Background(), nil)
	require.NoError(t, err)
	m.Release(s2)
}

func TestReleaseIsIdempotent(t *testing.T) {
	launcher := &browsertest.Launcher{}
	m, limiter := newManager(2, launcher)

	s, err := m.Acquire(context.Background(), nil)
	require.NoError(t, err)

	m.Release(s)
	m.Release(s)
	_ = s.Release()
	m.Release(nil)

	assert.Equal(t, 1, launcher.Pages()[0].Closes())
	assert.Equal(t, 0, limiter.InUse())
}

func TestCeilingRejectsInsteadOfQueueing(t *testing.T) {
	const ceiling = 3
	m, limiter := newManager(ceiling, &browsertest.Launcher{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions []*browser.Session
		rejected []error
	)
	for i := 0; i < ceiling+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.Acquire(context.Background(), nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rejected = append(rejected, err)
				return
			}
			sessions = append(sessions, s)
		}()
	}
	wg.Wait()

	require.Len(t, sessions, ceiling)
	require.Len(t, rejected, 1)
	assert.Equal(t, models.ErrCodeCapacityExceeded, models.CodeOf(rejected[0]))
	assert.Equal(t, ceiling, limiter.InUse())
	assert.Equal(t, models.SessionStats{MaxSessions: ceiling, ActiveSessions: ceiling}, m.Stats())

	for _, s := range sessions {
		m.Release(s)
	}
	assert.Equal(t, 0, limiter.InUse())
}

func TestUnreachableProxyFailsFast(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	launcher := &browsertest.Launcher{}
	m, limiter := newManager(1, launcher)

	_, err = m.Acquire(context.Background(), &config.ProxyEndpoint{Server: "http://" + addr})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeProxy, models.CodeOf(err))
	assert.Empty(t, launcher.Launches(), "no browser should start behind a dead proxy")
	assert.Equal(t, 0, limiter.InUse())
}

func TestReachableProxyIsPassedToLauncher(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	launcher := &browsertest.Launcher{}
	m, _ := newManager(1, launcher)
	proxy := &config.ProxyEndpoint{Server: ln.Addr().String(), Username: "u", Password: "p"}

	s, err := m.Acquire(context.Background(), proxy)
	require.NoError(t, err)
	defer m.Release(s)

	assert.Same(t, proxy, launcher.Launches()[0].Proxy)
	assert.Same(t, proxy, s.Proxy)
}

func TestLaunchFailureReleasesSlot(t *testing.T) {
	m, limiter := newManager(1, &browsertest.Launcher{Err: errors.New("no chromium")})

	_, err := m.Acquire(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeBrowserLaunch, models.CodeOf(err))
	assert.Equal(t, 0, limiter.InUse())
}

func TestLaunchPanicReleasesSlot(t *testing.T) {
	launcher := &browsertest.Launcher{
		NewPage: func(browser.LaunchOptions) *browsertest.Page { panic("renderer crashed") },
	}
	m, limiter := newManager(1, launcher)

	assert.PanicsWithValue(t, "renderer crashed", func() {
		_, _ = m.Acquire(context.Background(), nil)
	})
	assert.Equal(t, 0, limiter.InUse())
}

func TestAcquireCanceledContext(t *testing.T) {
	launcher := &browsertest.Launcher{}
	m, limiter := newManager(1, launcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Acquire(ctx, nil)
	assert.Equal(t, models.ErrCodeCanceled, models.CodeOf(err))
	assert.Empty(t, launcher.Launches())
	assert.Equal(t, 0, limiter.InUse())
}

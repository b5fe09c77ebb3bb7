package captcha

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shopee-scraper/browser"
	"github.com/use-agent/shopee-scraper/browser/browsertest"
	"github.com/use-agent/shopee-scraper/config"
)

func TestExtensionSolverPoll(t *testing.T) {
	tests := []struct {
		name string
		html string
		want Outcome
	}{
		{name: "challenge still shown", html: challengeHTML, want: OutcomePending},
		{name: "challenge gone", html: productHTML, want: OutcomeSolved},
		{
			name: "error page",
			html: `<html><body><p>Page cannot be displayed</p></body></html>`,
			want: OutcomeUnsolvable,
		},
		{
			name: "logged-in header under a challenge stays pending",
			html: `<html><body><a>登出</a><div id="captchaMask">slide</div></body></html>`,
			want: OutcomePending,
		},
		{
			name: "error text inside script is ignored",
			html: `<html><body><script>var s = "登出";</script><h1>Product</h1></body></html>`,
			want: OutcomeSolved,
		},
	}

	s := NewExtensionSolver(DefaultDetector(), "/ext")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Poll(context.Background(), browsertest.NewPage("https://shopee.tw/a", tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Outcome)
		})
	}
}

func TestExtensionSolverEngage(t *testing.T) {
	assert.ErrorIs(t, NewExtensionSolver(DefaultDetector(), "").Engage(context.Background(), nil), ErrSolverUnavailable)
	assert.NoError(t, NewExtensionSolver(DefaultDetector(), "/ext").Engage(context.Background(), nil))
}

func TestGateWithExtensionSolver(t *testing.T) {
	var calls atomic.Int32
	page := browsertest.NewPage("https://shopee.tw/a", "")
	page.SnapshotFunc = func(context.Context) (*browser.Snapshot, error) {
		// First read is detection; the challenge clears on the third poll.
		html := challengeHTML
		if calls.Add(1) > 3 {
			html = productHTML
		}
		return &browser.Snapshot{URL: "https://shopee.tw/a", HTML: html}, nil
	}

	g := NewGate(DefaultDetector(), NewExtensionSolver(DefaultDetector(), "/ext"),
		config.CaptchaConfig{MaxWait: time.Second, PollInterval: 5 * time.Millisecond})

	res, err := g.Resolve(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, StateSolved, res.State)
	assert.Equal(t, 3, res.Polls)
}

func TestDetectorBlockReason(t *testing.T) {
	d := DefaultDetector()

	blank, err := Parse(&browser.Snapshot{HTML: `<html><body><div id="main"></div></body></html>`})
	require.NoError(t, err)
	reason, ok := d.BlockReason(blank)
	assert.True(t, ok)
	assert.Equal(t, "page is blank", reason)

	blocked, err := Parse(&browser.Snapshot{HTML: `<html><body>請登入蝦皮購物 App</body></html>`})
	require.NoError(t, err)
	reason, ok = d.BlockReason(blocked)
	assert.True(t, ok)
	assert.Contains(t, reason, "請登入蝦皮購物 App")
}

func TestNewDetectorRejectsBadSelector(t *testing.T) {
	_, err := NewDetector([]string{"div[["}, nil, nil)
	assert.Error(t, err)
}

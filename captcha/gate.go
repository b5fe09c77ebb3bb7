package captcha

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/shopee-scraper/browser"
	"github.com/use-agent/shopee-scraper/config"
)

// State is the gate's classification of a page.
type State int

const (
	StateNotPresent State = iota
	StatePending
	StateSolved
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateNotPresent:
		return "not_present"
	case StatePending:
		return "pending"
	case StateSolved:
		return "solved"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s != StatePending }

// Result is the gate's verdict.
type Result struct {
	State   State
	Marker  string // challenge selector that matched
	Detail  string // solver detail for Failed
	Elapsed time.Duration
	Polls   int
}

// Gate detects a captcha challenge and waits, bounded, for the solver.
type Gate struct {
	detector     *Detector
	solver       Solver
	maxWait      time.Duration
	pollInterval time.Duration
}

// NewGate creates a Gate. Non-positive durations fall back to 240s and 1s.
func NewGate(detector *Detector, solver Solver, cfg config.CaptchaConfig) *Gate {
	g := &Gate{
		detector:     detector,
		solver:       solver,
		maxWait:      cfg.MaxWait,
		pollInterval: cfg.PollInterval,
	}
	if g.maxWait <= 0 {
		g.maxWait = 240 * time.Second
	}
	if g.pollInterval <= 0 {
		g.pollInterval = time.Second
	}
	return g
}

// MaxWait returns the configured wait ceiling.
func (g *Gate) MaxWait() time.Duration { return g.maxWait }

// Resolve inspects the page and, if a challenge is present, waits for the
// solver until it reports success or failure or maxWait elapses.
//
// Returns an error only when the page cannot be read for detection or when
// ctx ends; a timed-out wait is StateTimedOut with a nil error. Resolve
// returns no later than maxWait plus one poll.
func (g *Gate) Resolve(ctx context.Context, page browser.Page) (Result, error) {
	start := time.Now()

	snap, err := page.Snapshot(ctx)
	if err != nil {
		return Result{State: StatePending}, fmt.Errorf("read page for captcha detection: %w", err)
	}
	parsed, err := Parse(snap)
	if err != nil {
		return Result{State: StatePending}, err
	}

	marker, found := g.detector.Challenge(parsed)
	if !found {
		return Result{State: StateNotPresent, Elapsed: time.Since(start)}, nil
	}

	res := Result{State: StatePending, Marker: marker}
	slog.Info("captcha challenge detected",
		"marker", marker,
		"url", snap.URL,
		"maxWait", g.maxWait.String(),
	)

	// Engaging the solver counts against maxWait too.
	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	if err := g.solver.Engage(waitCtx, page); err != nil {
		res.Elapsed = time.Since(start)
		switch {
		case ctx.Err() != nil:
			return res, ctx.Err()
		case waitCtx.Err() != nil:
			res.State = StateTimedOut
			slog.Warn("captcha solver did not engage in time", "marker", marker, "elapsed", res.Elapsed.String())
			return res, nil
		}
		res.State = StateFailed
		res.Detail = "solver could not be engaged: " + err.Error()
		return res, nil
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			res.Elapsed = time.Since(start)
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.State = StateTimedOut
			slog.Warn("captcha not solved in time", "marker", marker, "polls", res.Polls, "elapsed", res.Elapsed.String())
			return res, nil
		case <-ticker.C:
		}

		verdict, err := g.solver.Poll(waitCtx, page)
		res.Polls++
		if err != nil {
			// The page may be mid-navigation right after a solve.
			slog.Debug("captcha poll failed, retrying", "error", err)
			continue
		}

		switch verdict.Outcome {
		case OutcomeSolved:
			res.State = StateSolved
			res.Elapsed = time.Since(start)
			slog.Info("captcha solved", "polls", res.Polls, "elapsed", res.Elapsed.String())
			return res, nil
		case OutcomeUnsolvable:
			res.State = StateFailed
			res.Detail = verdict.Detail
			res.Elapsed = time.Since(start)
			slog.Warn("captcha failed", "detail", verdict.Detail, "elapsed", res.Elapsed.String())
			return res, nil
		}
	}
}

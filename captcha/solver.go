package captcha

import (
	"context"
	"errors"

	"github.com/use-agent/shopee-scraper/browser"
)

// ErrSolverUnavailable is returned by Engage when no solving agent is
// installed in the browser.
var ErrSolverUnavailable = errors.New("captcha solver is not configured")

// Outcome is the solver's view of a challenge.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSolved
	OutcomeUnsolvable
)

// Resolution is one poll result.
type Resolution struct {
	Outcome Outcome
	Detail  string
}

// Solver is the external captcha-solving capability. The gate never solves
// challenges itself; it engages a Solver and polls it.
type Solver interface {
	// Engage makes sure the solver is working on the page's challenge.
	Engage(ctx context.Context, page browser.Page) error

	// Poll reports the current state of the challenge.
	Poll(ctx context.Context, page browser.Page) (Resolution, error)
}

// ExtensionSolver delegates to a solver browser extension loaded into every
// session. The extension works on its own once the challenge renders, so
// engaging only confirms it is installed and polling reads the page.
type ExtensionSolver struct {
	detector *Detector
	enabled  bool
}

// NewExtensionSolver returns a solver backed by the extension at
// extensionDir. An empty dir yields a solver that refuses to engage.
func NewExtensionSolver(detector *Detector, extensionDir string) *ExtensionSolver {
	return &ExtensionSolver{detector: detector, enabled: extensionDir != ""}
}

func (s *ExtensionSolver) Engage(ctx context.Context, _ browser.Page) error {
	if !s.enabled {
		return ErrSolverUnavailable
	}
	return ctx.Err()
}

// Poll reports Pending while a challenge marker is on the page. Once the
// markers are gone the page is checked for the site's error texts: a
// rejected answer replaces the challenge with an error page, so missing
// markers alone do not mean success.
func (s *ExtensionSolver) Poll(ctx context.Context, page browser.Page) (Resolution, error) {
	snap, err := page.Snapshot(ctx)
	if err != nil {
		return Resolution{}, err
	}
	p, err := Parse(snap)
	if err != nil {
		return Resolution{}, err
	}
	if marker, ok := s.detector.Challenge(p); ok {
		return Resolution{Outcome: OutcomePending, Detail: marker}, nil
	}
	if text, ok := s.detector.ErrorText(p); ok {
		return Resolution{Outcome: OutcomeUnsolvable, Detail: "received error page: " + text}, nil
	}
	return Resolution{Outcome: OutcomeSolved}, nil
}

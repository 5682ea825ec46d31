package check

import (
	"context"
	"time"
)

// BrowserSession is the narrow browser-automation capability the core
// consumes. One session maps to one OS-level browser process.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Text(ctx context.Context, selector string) (string, error)
	Evaluate(ctx context.Context, js string, out any) error
	Location(ctx context.Context) (string, error)

	// Close releases the browser process. Idempotent, best-effort: it must
	// not fail even if the session already crashed.
	Close()
}

type SessionFactory interface {
	Open(ctx context.Context) (BrowserSession, error)
}

// ChallengeSolver turns challenge parameters into a usable token, or fails
// within its own timeout (independent of the browser timeout).
type ChallengeSolver interface {
	Solve(ctx context.Context, params ChallengeParameters) (SolvedToken, error)
	ReportBad(ctx context.Context, taskID string) error
}

type Notifier interface {
	Send(ctx context.Context, text string) error
	TestConnection(ctx context.Context) error
}

// AvailabilityReader drives a BrowserSession through the site's booking flow.
type AvailabilityReader interface {
	OpenEntry(ctx context.Context) error
	FindChallenge(ctx context.Context) (ChallengeParameters, error)
	InjectToken(ctx context.Context, token string) error
	ProceedToCalendar(ctx context.Context) error
	GotoMonth(ctx context.Context, target time.Time) error
	ReadDay(ctx context.Context, date time.Time) (DateAvailability, error)
}

// ReaderFactory binds a reader to the session opened for the current run.
type ReaderFactory func(BrowserSession) AvailabilityReader

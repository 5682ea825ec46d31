package check

import "time"

// Verdict is the tri-state result of reading one calendar date.
// Indeterminate means the page could not be parsed with confidence; it is
// deliberately distinct from Unavailable.
type Verdict string

const (
	VerdictAvailable     Verdict = "available"
	VerdictUnavailable   Verdict = "unavailable"
	VerdictIndeterminate Verdict = "indeterminate"
)

type DateAvailability struct {
	Date        time.Time
	Verdict     Verdict
	LastTickets bool
}

// ChallengeParameters identify one reCAPTCHA instance on the live page.
// Extracted per run, never persisted.
type ChallengeParameters struct {
	SiteKey string
	PageURL string
}

// SolvedToken is handed back into the page once and then discarded.
// TaskID allows reporting a bad solution back to the provider.
type SolvedToken struct {
	Value  string
	TaskID string
}

type Request struct {
	// Dates to read; all must fall in the same calendar month.
	Dates      []time.Time
	TicketType string
	DryRun     bool
}

// Outcome is the sole durable artifact of a run.
type Outcome struct {
	RunID     string
	Timestamp time.Time
	Verdict   Verdict
	Dates     []DateAvailability

	// Notified is true when the alert was delivered. In dry-run mode it
	// reflects whether an alert would have been sent.
	Notified bool
	DryRun   bool

	Failure *StepError
}

// Available returns the subset of dates with tickets.
func (o Outcome) Available() []DateAvailability {
	var out []DateAvailability
	for _, d := range o.Dates {
		if d.Verdict == VerdictAvailable {
			out = append(out, d)
		}
	}
	return out
}

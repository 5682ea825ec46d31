package check

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed run for log triage and exit-code mapping.
type Kind string

const (
	KindConfig                 Kind = "configuration"
	KindBrowserLaunch          Kind = "browser_launch"
	KindNavigation             Kind = "navigation"
	KindChallengeNotFound      Kind = "challenge_not_found"
	KindCalendarLoadTimeout    Kind = "calendar_load_timeout"
	KindTargetMonthUnreachable Kind = "target_month_unreachable"
	KindSolverTimeout          Kind = "solver_timeout"
	KindSolverRejected         Kind = "solver_rejected"
	KindSolverAuth             Kind = "solver_auth"
	KindNotifierAuth           Kind = "notifier_auth"
	KindNotifierDelivery       Kind = "notifier_delivery"
)

// StepError wraps a component failure with enough context (step, date,
// timestamp) to be actionable from a single log line.
type StepError struct {
	Kind Kind
	Step string
	Date string
	At   time.Time
	Err  error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s at step %q", e.Kind, e.Step)
	if e.Date != "" {
		msg += " (date " + e.Date + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

func Wrap(kind Kind, step string, err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		// Keep the innermost classification; only fill missing context.
		if se.Step == "" {
			se.Step = step
		}
		return se
	}
	return &StepError{Kind: kind, Step: step, At: time.Now().UTC(), Err: err}
}

// KindOf extracts the classification from a wrapped error chain.
func KindOf(err error) Kind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// SolverFailure reports whether the run failed inside the solving service.
func SolverFailure(k Kind) bool {
	return k == KindSolverTimeout || k == KindSolverRejected || k == KindSolverAuth
}

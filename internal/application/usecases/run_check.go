package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/alhambra-checker/internal/domain/check"
)

// RunCheck is the end-to-end availability check: open a browser session,
// pass the reCAPTCHA gate, read the calendar, decide whether to notify.
// One invocation is one run; there is no in-process retry — the next cron
// tick is the retry.
type RunCheck struct {
	Sessions  check.SessionFactory
	NewReader check.ReaderFactory
	Solver    check.ChallengeSolver
	Notifier  check.Notifier

	// SiteURL is included in the alert as the purchase link.
	SiteURL string

	// NotifyErrors sends an error alert when a run fails. Off by default.
	NotifyErrors bool

	Log *zap.Logger
}

func (u RunCheck) Execute(ctx context.Context, req check.Request) check.Outcome {
	out := check.Outcome{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Verdict:   check.VerdictIndeterminate,
		DryRun:    req.DryRun,
	}
	log := u.log().With(zap.String("run_id", out.RunID))

	if len(req.Dates) == 0 {
		return u.fail(ctx, log, out, check.Wrap(check.KindConfig, "init", fmt.Errorf("no target dates")))
	}
	log.Info("starting availability check",
		zap.String("month", req.Dates[0].Format("2006-01")),
		zap.Int("dates", len(req.Dates)),
		zap.Bool("dry_run", req.DryRun))

	session, err := u.Sessions.Open(ctx)
	if err != nil {
		return u.fail(ctx, log, out, check.Wrap(check.KindBrowserLaunch, "browser_open", err))
	}
	// Released exactly once on every path, including the failed ones.
	defer session.Close()

	reader := u.NewReader(session)

	if err := reader.OpenEntry(ctx); err != nil {
		return u.fail(ctx, log, out, check.Wrap(check.KindNavigation, "open_entry", err))
	}

	params, err := reader.FindChallenge(ctx)
	if err != nil {
		return u.fail(ctx, log, out, check.Wrap(check.KindChallengeNotFound, "find_challenge", err))
	}

	token, err := u.Solver.Solve(ctx, params)
	if err != nil {
		return u.fail(ctx, log, out, check.Wrap(check.KindSolverRejected, "solve", err))
	}

	if err := reader.InjectToken(ctx, token.Value); err != nil {
		return u.fail(ctx, log, out, check.Wrap(check.KindChallengeNotFound, "inject_token", err))
	}

	if err := reader.ProceedToCalendar(ctx); err != nil {
		// The token most likely did not take; ask for a refund.
		if rerr := u.Solver.ReportBad(ctx, token.TaskID); rerr != nil {
			log.Debug("report bad captcha failed", zap.Error(rerr))
		}
		return u.fail(ctx, log, out, check.Wrap(check.KindCalendarLoadTimeout, "proceed", err))
	}

	if err := reader.GotoMonth(ctx, req.Dates[0]); err != nil {
		return u.fail(ctx, log, out, check.Wrap(check.KindTargetMonthUnreachable, "goto_month", err))
	}

	for _, date := range req.Dates {
		da, err := reader.ReadDay(ctx, date)
		if err != nil {
			log.Warn("date unreadable", zap.String("date", date.Format("2006-01-02")), zap.Error(err))
			da = check.DateAvailability{Date: date, Verdict: check.VerdictIndeterminate}
		}
		out.Dates = append(out.Dates, da)
	}
	out.Verdict = check.Aggregate(out.Dates)

	switch out.Verdict {
	case check.VerdictIndeterminate:
		log.Warn("availability indeterminate: page structure may have drifted")
	case check.VerdictUnavailable:
		log.Info("no tickets for requested dates")
	case check.VerdictAvailable:
		out.Notified = u.notify(ctx, log, req, out)
	}

	log.Info("check finished",
		zap.String("verdict", string(out.Verdict)),
		zap.Bool("notified", out.Notified))
	return out
}

// notify sends the availability alert, or just logs it on a dry run.
// Delivery failure degrades the outcome, it does not fail the check.
func (u RunCheck) notify(ctx context.Context, log *zap.Logger, req check.Request, out check.Outcome) bool {
	msg := alertMessage(out.Available(), req.TicketType, u.SiteURL)
	if req.DryRun {
		log.Info("dry run: notification suppressed", zap.String("message", msg))
		return true
	}
	if err := u.Notifier.Send(ctx, msg); err != nil {
		log.Warn("notification failed; check result stands", zap.Error(err))
		return false
	}
	log.Info("availability alert sent")
	return true
}

func (u RunCheck) fail(ctx context.Context, log *zap.Logger, out check.Outcome, err *check.StepError) check.Outcome {
	out.Failure = err
	log.Error("check failed",
		zap.String("kind", string(err.Kind)),
		zap.String("step", err.Step),
		zap.Error(err))
	if u.NotifyErrors {
		if nerr := u.Notifier.Send(ctx, errorMessage(err)); nerr != nil {
			log.Debug("error alert failed", zap.Error(nerr))
		}
	}
	return out
}

func (u RunCheck) log() *zap.Logger {
	if u.Log == nil {
		return zap.NewNop()
	}
	return u.Log
}

func alertMessage(dates []check.DateAvailability, ticketType, purchaseURL string) string {
	var lines []string
	for _, d := range dates {
		status := "Available"
		if d.LastTickets {
			status = "Last Tickets!"
		}
		lines = append(lines, fmt.Sprintf("  • %s - *%s*", d.Date.Format("2006-01-02"), status))
	}
	return fmt.Sprintf(
		"🎫 *Alhambra Ticket Alert*\n\n📅 Available dates:\n%s\n\n🎟️ Type: %s\n\n🔗 [Purchase Now](%s)",
		strings.Join(lines, "\n"), ticketType, purchaseURL)
}

func errorMessage(err *check.StepError) string {
	return fmt.Sprintf("⚠️ *Alhambra Checker Error*\n\n```\n%s\n```", err.Error())
}

// Package alhambra drives the Alhambra ticket site's booking flow over the
// BrowserSession port: entry page, reCAPTCHA gate, calendar navigation and
// per-date availability reads.
package alhambra

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/example/alhambra-checker/internal/domain/check"
)

const (
	entrySelector    = "input[value='Go to step 1']"
	calendarSelector = "table"

	entryWait    = 10 * time.Second
	calendarWait = 15 * time.Second
)

var monthNames = map[string]time.Month{
	"January": time.January, "February": time.February, "March": time.March,
	"April": time.April, "May": time.May, "June": time.June,
	"July": time.July, "August": time.August, "September": time.September,
	"October": time.October, "November": time.November, "December": time.December,
}

var monthYearRe = regexp.MustCompile(
	`(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{4})`)

type Config struct {
	SiteURL string

	// SiteKeyFallback is used when the key cannot be read from page markup.
	SiteKeyFallback string

	// SettleDelay is the pause after calendar navigation clicks while the
	// ASP.NET postback re-renders.
	SettleDelay time.Duration

	Log *zap.Logger
}

type Reader struct {
	session check.BrowserSession
	cfg     Config
	log     *zap.Logger
}

func New(session check.BrowserSession, cfg Config) *Reader {
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 1500 * time.Millisecond
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{session: session, cfg: cfg, log: log}
}

// OpenEntry navigates to the purchase page and clears the cookie dialog.
func (r *Reader) OpenEntry(ctx context.Context) error {
	r.log.Info("navigating to purchase page", zap.String("url", r.cfg.SiteURL))
	if err := r.session.Navigate(ctx, r.cfg.SiteURL); err != nil {
		return check.Wrap(check.KindNavigation, "open_entry", err)
	}

	// The bot check ("Voight-Kampff") may hold the page before the form
	// renders; give it a bounded wait and move on either way. A page that
	// never renders the form fails later as challenge-not-found.
	if err := r.session.WaitVisible(ctx, entrySelector, entryWait); err != nil {
		r.log.Debug("entry form not visible yet, continuing", zap.Error(err))
	}

	var accepted bool
	if err := r.session.Evaluate(ctx, acceptCookiesJS, &accepted); err == nil && accepted {
		r.log.Info("cookies accepted")
	}
	return nil
}

// FindChallenge extracts the reCAPTCHA parameters from the live page.
func (r *Reader) FindChallenge(ctx context.Context) (check.ChallengeParameters, error) {
	pageURL, err := r.session.Location(ctx)
	if err != nil {
		return check.ChallengeParameters{}, check.Wrap(check.KindNavigation, "find_challenge", err)
	}

	var siteKey string
	if err := r.session.Evaluate(ctx, findSiteKeyJS, &siteKey); err != nil {
		return check.ChallengeParameters{}, check.Wrap(check.KindChallengeNotFound, "find_challenge", err)
	}
	if siteKey == "" {
		siteKey = r.cfg.SiteKeyFallback
	}
	if siteKey == "" {
		return check.ChallengeParameters{}, check.Wrap(check.KindChallengeNotFound, "find_challenge",
			fmt.Errorf("no recaptcha widget on page %s", pageURL))
	}

	r.log.Debug("challenge located", zap.String("site_key", siteKey))
	return check.ChallengeParameters{SiteKey: siteKey, PageURL: pageURL}, nil
}

// InjectToken plants the solved token into the page.
func (r *Reader) InjectToken(ctx context.Context, token string) error {
	r.log.Info("injecting captcha token")
	if err := r.session.Evaluate(ctx, injectTokenJS(token), nil); err != nil {
		return check.Wrap(check.KindChallengeNotFound, "inject_token", err)
	}
	return nil
}

// ProceedToCalendar submits the gated form and waits for the calendar.
func (r *Reader) ProceedToCalendar(ctx context.Context) error {
	r.log.Info("proceeding to calendar")
	if err := r.session.Click(ctx, entrySelector); err != nil {
		return check.Wrap(check.KindCalendarLoadTimeout, "proceed", err)
	}
	if err := r.session.WaitVisible(ctx, calendarSelector, calendarWait); err != nil {
		return check.Wrap(check.KindCalendarLoadTimeout, "proceed",
			fmt.Errorf("calendar did not render: %w", err))
	}
	r.log.Info("calendar loaded")
	return nil
}

// GotoMonth steps the calendar until the displayed month matches the
// target's, bounded by check.MaxMonthHops.
func (r *Reader) GotoMonth(ctx context.Context, target time.Time) error {
	for hop := 0; hop <= check.MaxMonthHops; hop++ {
		current, ok, err := r.currentMonth(ctx)
		if err != nil {
			return check.Wrap(check.KindTargetMonthUnreachable, "goto_month", err)
		}
		if !ok {
			r.log.Warn("could not determine displayed month", zap.Int("hop", hop))
			if err := r.settle(ctx); err != nil {
				return check.Wrap(check.KindTargetMonthUnreachable, "goto_month", err)
			}
			continue
		}

		cmp := check.CompareMonth(current, target)
		r.log.Info("calendar month",
			zap.String("displayed", current.Format("2006-01")),
			zap.String("target", target.Format("2006-01")))
		if cmp == 0 {
			return nil
		}

		var clicked bool
		if err := r.session.Evaluate(ctx, clickMonthNavJS(cmp < 0), &clicked); err != nil {
			return check.Wrap(check.KindTargetMonthUnreachable, "goto_month", err)
		}
		if !clicked {
			return check.Wrap(check.KindTargetMonthUnreachable, "goto_month",
				fmt.Errorf("no month navigation link on page"))
		}
		if err := r.settle(ctx); err != nil {
			return check.Wrap(check.KindTargetMonthUnreachable, "goto_month", err)
		}
	}
	return check.Wrap(check.KindTargetMonthUnreachable, "goto_month",
		fmt.Errorf("target month %s not reached within %d hops", target.Format("2006-01"), check.MaxMonthHops))
}

// ReadDay classifies the target date's calendar cell.
func (r *Reader) ReadDay(ctx context.Context, date time.Time) (check.DateAvailability, error) {
	var state struct {
		Found   bool   `json:"found"`
		HasLink bool   `json:"hasLink"`
		Class   string `json:"class"`
	}
	if err := r.session.Evaluate(ctx, dayCellJS(date.Day()), &state); err != nil {
		r.log.Warn("day cell read failed", zap.String("date", date.Format("2006-01-02")), zap.Error(err))
		return check.DateAvailability{Date: date, Verdict: check.VerdictIndeterminate}, nil
	}

	verdict, last := check.Classify(check.CellState{
		Found:   state.Found,
		HasLink: state.HasLink,
		Class:   state.Class,
	})
	r.log.Info("date read",
		zap.String("date", date.Format("2006-01-02")),
		zap.String("verdict", string(verdict)),
		zap.Bool("last_tickets", last))
	return check.DateAvailability{Date: date, Verdict: verdict, LastTickets: last}, nil
}

// currentMonth reads the displayed month/year from the calendar text.
func (r *Reader) currentMonth(ctx context.Context) (time.Time, bool, error) {
	content, err := r.session.Text(ctx, "body")
	if err != nil {
		return time.Time{}, false, err
	}
	m := monthYearRe.FindStringSubmatch(content)
	if m == nil {
		return time.Time{}, false, nil
	}
	year, _ := strconv.Atoi(m[2])
	return time.Date(year, monthNames[m[1]], 1, 0, 0, 0, 0, time.UTC), true, nil
}

func (r *Reader) settle(ctx context.Context) error {
	t := time.NewTimer(r.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

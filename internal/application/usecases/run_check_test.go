package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/alhambra-checker/internal/domain/check"
)

type sessionSpy struct {
	closed int
}

func (s *sessionSpy) Navigate(ctx context.Context, url string) error { return nil }
func (s *sessionSpy) WaitVisible(ctx context.Context, sel string, d time.Duration) error {
	return nil
}
func (s *sessionSpy) Click(ctx context.Context, sel string) error          { return nil }
func (s *sessionSpy) Text(ctx context.Context, sel string) (string, error) { return "", nil }
func (s *sessionSpy) Evaluate(ctx context.Context, js string, out any) error {
	return nil
}
func (s *sessionSpy) Location(ctx context.Context) (string, error) { return "", nil }
func (s *sessionSpy) Close()                                       { s.closed++ }

type fakeFactory struct {
	session *sessionSpy
	err     error
	opens   int
}

func (f *fakeFactory) Open(ctx context.Context) (check.BrowserSession, error) {
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeReader struct {
	openErr      error
	challengeErr error
	injectErr    error
	proceedErr   error
	gotoErr      error

	days    map[string]check.DateAvailability
	readErr map[string]error

	injectedToken string
	gotoTarget    time.Time
}

func (r *fakeReader) OpenEntry(ctx context.Context) error { return r.openErr }

func (r *fakeReader) FindChallenge(ctx context.Context) (check.ChallengeParameters, error) {
	if r.challengeErr != nil {
		return check.ChallengeParameters{}, r.challengeErr
	}
	return check.ChallengeParameters{SiteKey: "sk", PageURL: "https://tickets.example"}, nil
}

func (r *fakeReader) InjectToken(ctx context.Context, token string) error {
	r.injectedToken = token
	return r.injectErr
}

func (r *fakeReader) ProceedToCalendar(ctx context.Context) error { return r.proceedErr }

func (r *fakeReader) GotoMonth(ctx context.Context, target time.Time) error {
	r.gotoTarget = target
	return r.gotoErr
}

func (r *fakeReader) ReadDay(ctx context.Context, date time.Time) (check.DateAvailability, error) {
	key := date.Format("2006-01-02")
	if err := r.readErr[key]; err != nil {
		return check.DateAvailability{}, err
	}
	if da, ok := r.days[key]; ok {
		return da, nil
	}
	return check.DateAvailability{Date: date, Verdict: check.VerdictUnavailable}, nil
}

type fakeSolver struct {
	token    check.SolvedToken
	err      error
	solves   int
	reported []string
}

func (s *fakeSolver) Solve(ctx context.Context, p check.ChallengeParameters) (check.SolvedToken, error) {
	s.solves++
	if s.err != nil {
		return check.SolvedToken{}, s.err
	}
	return s.token, nil
}

func (s *fakeSolver) ReportBad(ctx context.Context, taskID string) error {
	s.reported = append(s.reported, taskID)
	return nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, text string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, text)
	return nil
}

func (n *fakeNotifier) TestConnection(ctx context.Context) error { return nil }

type fixture struct {
	factory  *fakeFactory
	reader   *fakeReader
	solver   *fakeSolver
	notifier *fakeNotifier
	uc       RunCheck
}

func newFixture() *fixture {
	f := &fixture{
		factory:  &fakeFactory{session: &sessionSpy{}},
		reader:   &fakeReader{days: map[string]check.DateAvailability{}, readErr: map[string]error{}},
		solver:   &fakeSolver{token: check.SolvedToken{Value: "tok", TaskID: "task-42"}},
		notifier: &fakeNotifier{},
	}
	f.uc = RunCheck{
		Sessions:  f.factory,
		NewReader: func(check.BrowserSession) check.AvailabilityReader { return f.reader },
		Solver:    f.solver,
		Notifier:  f.notifier,
		SiteURL:   "https://tickets.example/entry",
	}
	return f
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func request(dates ...time.Time) check.Request {
	return check.Request{Dates: dates, TicketType: "GENERAL"}
}

func TestExecuteAvailableSendsAlert(t *testing.T) {
	f := newFixture()
	target := day(2026, 2, 17)
	f.reader.days["2026-02-17"] = check.DateAvailability{Date: target, Verdict: check.VerdictAvailable}

	out := f.uc.Execute(context.Background(), request(target))

	require.Nil(t, out.Failure)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, check.VerdictAvailable, out.Verdict)
	assert.True(t, out.Notified)

	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0], "2026-02-17")
	assert.Contains(t, f.notifier.sent[0], "https://tickets.example/entry")

	assert.Equal(t, "tok", f.reader.injectedToken)
	assert.Equal(t, target, f.reader.gotoTarget)
	assert.Equal(t, 1, f.factory.session.closed)
}

func TestExecuteUnavailableStaysQuiet(t *testing.T) {
	f := newFixture()
	out := f.uc.Execute(context.Background(), request(day(2026, 2, 17)))

	require.Nil(t, out.Failure)
	assert.Equal(t, check.VerdictUnavailable, out.Verdict)
	assert.False(t, out.Notified)
	assert.Empty(t, f.notifier.sent)
}

func TestExecuteDryRunSuppressesDelivery(t *testing.T) {
	f := newFixture()
	target := day(2026, 2, 17)
	f.reader.days["2026-02-17"] = check.DateAvailability{Date: target, Verdict: check.VerdictAvailable}

	req := request(target)
	req.DryRun = true
	out := f.uc.Execute(context.Background(), req)

	assert.Equal(t, check.VerdictAvailable, out.Verdict)
	assert.True(t, out.Notified)
	assert.True(t, out.DryRun)
	assert.Empty(t, f.notifier.sent)
}

func TestExecuteIndeterminateStaysQuiet(t *testing.T) {
	f := newFixture()
	target := day(2026, 2, 17)
	f.reader.days["2026-02-17"] = check.DateAvailability{Date: target, Verdict: check.VerdictIndeterminate}

	out := f.uc.Execute(context.Background(), request(target))

	require.Nil(t, out.Failure)
	assert.Equal(t, check.VerdictIndeterminate, out.Verdict)
	assert.False(t, out.Notified)
	assert.Empty(t, f.notifier.sent)
}

func TestExecuteAlertListsOnlyAvailableDates(t *testing.T) {
	f := newFixture()
	hit, miss := day(2026, 2, 17), day(2026, 2, 20)
	f.reader.days["2026-02-17"] = check.DateAvailability{Date: hit, Verdict: check.VerdictAvailable, LastTickets: true}
	f.reader.days["2026-02-20"] = check.DateAvailability{Date: miss, Verdict: check.VerdictUnavailable}

	out := f.uc.Execute(context.Background(), request(hit, miss))

	assert.Equal(t, check.VerdictAvailable, out.Verdict)
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0], "2026-02-17")
	assert.Contains(t, f.notifier.sent[0], "Last Tickets!")
	assert.NotContains(t, f.notifier.sent[0], "2026-02-20")
}

func TestExecuteUnreadableDateDegradesToIndeterminate(t *testing.T) {
	f := newFixture()
	good, bad := day(2026, 2, 17), day(2026, 2, 20)
	f.reader.days["2026-02-17"] = check.DateAvailability{Date: good, Verdict: check.VerdictAvailable}
	f.reader.readErr["2026-02-20"] = errors.New("stale element")

	out := f.uc.Execute(context.Background(), request(good, bad))

	require.Nil(t, out.Failure)
	require.Len(t, out.Dates, 2)
	assert.Equal(t, check.VerdictIndeterminate, out.Dates[1].Verdict)
	assert.Equal(t, check.VerdictAvailable, out.Verdict)
}

func TestExecuteNoDatesIsConfigFailure(t *testing.T) {
	f := newFixture()
	out := f.uc.Execute(context.Background(), check.Request{})

	require.NotNil(t, out.Failure)
	assert.Equal(t, check.KindConfig, out.Failure.Kind)
	assert.Zero(t, f.factory.opens)
}

func TestExecuteSolverFailurePropagatesKind(t *testing.T) {
	f := newFixture()
	f.solver.err = check.Wrap(check.KindSolverTimeout, "solve", errors.New("deadline"))

	out := f.uc.Execute(context.Background(), request(day(2026, 2, 17)))

	require.NotNil(t, out.Failure)
	assert.Equal(t, check.KindSolverTimeout, out.Failure.Kind)
	assert.Equal(t, check.VerdictIndeterminate, out.Verdict)
	assert.Empty(t, f.notifier.sent)
	assert.Equal(t, 1, f.factory.session.closed)
}

func TestExecuteSessionClosedOnceOnEveryFailurePath(t *testing.T) {
	tests := []struct {
		name  string
		fault func(f *fixture)
		kind  check.Kind
	}{
		{"entry navigation", func(f *fixture) {
			f.reader.openErr = check.Wrap(check.KindNavigation, "open_entry", errors.New("dns"))
		}, check.KindNavigation},
		{"challenge missing", func(f *fixture) {
			f.reader.challengeErr = check.Wrap(check.KindChallengeNotFound, "find_challenge", errors.New("no widget"))
		}, check.KindChallengeNotFound},
		{"solver rejected", func(f *fixture) {
			f.solver.err = check.Wrap(check.KindSolverRejected, "solve", errors.New("unsolvable"))
		}, check.KindSolverRejected},
		{"token injection", func(f *fixture) {
			f.reader.injectErr = check.Wrap(check.KindChallengeNotFound, "inject_token", errors.New("eval"))
		}, check.KindChallengeNotFound},
		{"calendar never loads", func(f *fixture) {
			f.reader.proceedErr = check.Wrap(check.KindCalendarLoadTimeout, "proceed", errors.New("no table"))
		}, check.KindCalendarLoadTimeout},
		{"month unreachable", func(f *fixture) {
			f.reader.gotoErr = check.Wrap(check.KindTargetMonthUnreachable, "goto_month", errors.New("no arrows"))
		}, check.KindTargetMonthUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.fault(f)

			out := f.uc.Execute(context.Background(), request(day(2026, 2, 17)))

			require.NotNil(t, out.Failure)
			assert.Equal(t, tt.kind, out.Failure.Kind)
			assert.Equal(t, check.VerdictIndeterminate, out.Verdict)
			assert.False(t, out.Notified)
			assert.Empty(t, f.notifier.sent)
			assert.Equal(t, 1, f.factory.session.closed)
		})
	}
}

func TestExecuteBrowserLaunchFailure(t *testing.T) {
	f := newFixture()
	f.factory.err = errors.New("chrome not found")

	out := f.uc.Execute(context.Background(), request(day(2026, 2, 17)))

	require.NotNil(t, out.Failure)
	assert.Equal(t, check.KindBrowserLaunch, out.Failure.Kind)
}

func TestExecuteRefundsTokenWhenCalendarNeverLoads(t *testing.T) {
	f := newFixture()
	f.reader.proceedErr = check.Wrap(check.KindCalendarLoadTimeout, "proceed", errors.New("no table"))

	f.uc.Execute(context.Background(), request(day(2026, 2, 17)))

	assert.Equal(t, []string{"task-42"}, f.solver.reported)
}

func TestExecuteDeliveryFailureDoesNotFailCheck(t *testing.T) {
	f := newFixture()
	target := day(2026, 2, 17)
	f.reader.days["2026-02-17"] = check.DateAvailability{Date: target, Verdict: check.VerdictAvailable}
	f.notifier.err = check.Wrap(check.KindNotifierDelivery, "send", errors.New("chat not found"))

	out := f.uc.Execute(context.Background(), request(target))

	require.Nil(t, out.Failure)
	assert.Equal(t, check.VerdictAvailable, out.Verdict)
	assert.False(t, out.Notified)
}

func TestExecuteErrorAlertsOffByDefault(t *testing.T) {
	f := newFixture()
	f.reader.openErr = errors.New("dns")

	f.uc.Execute(context.Background(), request(day(2026, 2, 17)))
	assert.Empty(t, f.notifier.sent)
}

func TestExecuteErrorAlertsWhenEnabled(t *testing.T) {
	f := newFixture()
	f.uc.NotifyErrors = true
	f.reader.openErr = errors.New("dns")

	f.uc.Execute(context.Background(), request(day(2026, 2, 17)))

	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0], "Error")
}

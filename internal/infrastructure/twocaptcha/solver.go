// Package twocaptcha implements the ChallengeSolver port against the
// 2Captcha submit/poll HTTP API.
package twocaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/example/alhambra-checker/internal/domain/check"
)

const defaultBaseURL = "https://2captcha.com"

// The provider rate-limits result polling; polling faster than this gets
// the key blocked.
const minPollInterval = 5 * time.Second

const defaultInitialDelay = 10 * time.Second

type Solver struct {
	apiKey string
	base   string
	http   *http.Client

	timeout      time.Duration
	pollInterval time.Duration
	initialDelay time.Duration

	log *zap.Logger
}

type Option func(*Solver)

func WithBaseURL(u string) Option {
	return func(s *Solver) { s.base = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Solver) { s.http = c }
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Solver) { s.pollInterval = d }
}

func WithInitialDelay(d time.Duration) Option {
	return func(s *Solver) { s.initialDelay = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Solver) { s.log = l }
}

func New(apiKey string, timeout time.Duration, opts ...Option) *Solver {
	s := &Solver{
		apiKey:       apiKey,
		base:         defaultBaseURL,
		http:         &http.Client{Timeout: 30 * time.Second},
		timeout:      timeout,
		pollInterval: minPollInterval,
		initialDelay: defaultInitialDelay,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve submits the challenge and polls until a token, an explicit failure,
// or the solver timeout. Auth failures are non-retryable: the whole run
// should abort rather than burn money on a dead key.
func (s *Solver) Solve(ctx context.Context, params check.ChallengeParameters) (check.SolvedToken, error) {
	deadline := time.Now().Add(s.timeout)

	taskID, err := s.submit(ctx, params)
	if err != nil {
		return check.SolvedToken{}, err
	}
	s.log.Info("captcha task submitted", zap.String("task_id", taskID))

	if err := sleepCtx(ctx, s.initialDelay); err != nil {
		return check.SolvedToken{}, check.Wrap(check.KindSolverTimeout, "solve", err)
	}

	for {
		if time.Now().After(deadline) {
			return check.SolvedToken{}, check.Wrap(check.KindSolverTimeout, "solve",
				fmt.Errorf("no result after %s (task %s)", s.timeout, taskID))
		}

		token, ready, err := s.poll(ctx, taskID)
		if err != nil {
			return check.SolvedToken{}, err
		}
		if ready {
			s.log.Info("captcha solved", zap.String("task_id", taskID))
			return check.SolvedToken{Value: token, TaskID: taskID}, nil
		}

		wait := s.interval()
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return check.SolvedToken{}, check.Wrap(check.KindSolverTimeout, "solve", err)
		}
	}
}

// ReportBad asks the provider to refund an unusable solution. Best effort.
func (s *Solver) ReportBad(ctx context.Context, taskID string) error {
	q := url.Values{
		"key":    {s.apiKey},
		"action": {"reportbad"},
		"id":     {taskID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/res.php?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	s.log.Info("reported bad captcha", zap.String("task_id", taskID))
	return nil
}

type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

func (s *Solver) submit(ctx context.Context, params check.ChallengeParameters) (string, error) {
	q := url.Values{
		"key":       {s.apiKey},
		"method":    {"userrecaptcha"},
		"googlekey": {params.SiteKey},
		"pageurl":   {params.PageURL},
		"json":      {"1"},
	}
	res, err := s.call(ctx, "/in.php", q)
	if err != nil {
		return "", check.Wrap(check.KindSolverRejected, "solve_submit", err)
	}
	if res.Status != 1 {
		return "", check.Wrap(classify(res.Request), "solve_submit",
			fmt.Errorf("submit rejected: %s", res.Request))
	}
	return res.Request, nil
}

func (s *Solver) poll(ctx context.Context, taskID string) (string, bool, error) {
	q := url.Values{
		"key":    {s.apiKey},
		"action": {"get"},
		"id":     {taskID},
		"json":   {"1"},
	}
	res, err := s.call(ctx, "/res.php", q)
	if err != nil {
		return "", false, check.Wrap(check.KindSolverRejected, "solve_poll", err)
	}
	if res.Status == 1 {
		return res.Request, true, nil
	}
	if res.Request == "CAPCHA_NOT_READY" {
		s.log.Debug("captcha not ready", zap.String("task_id", taskID))
		return "", false, nil
	}
	return "", false, check.Wrap(classify(res.Request), "solve_poll",
		fmt.Errorf("solving failed: %s", res.Request))
}

func (s *Solver) call(ctx context.Context, path string, q url.Values) (apiResponse, error) {
	var out apiResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return out, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("2captcha http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("2captcha response parse: %w", err)
	}
	return out, nil
}

// interval clamps the configured poll interval to the provider minimum.
func (s *Solver) interval() time.Duration {
	if s.pollInterval < minPollInterval {
		return minPollInterval
	}
	return s.pollInterval
}

func classify(apiErr string) check.Kind {
	switch apiErr {
	case "ERROR_WRONG_USER_KEY", "ERROR_KEY_DOES_NOT_EXIST", "ERROR_ZERO_BALANCE":
		return check.KindSolverAuth
	default:
		return check.KindSolverRejected
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

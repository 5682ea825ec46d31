// Package browser implements the BrowserSession port on top of chromedp.
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/example/alhambra-checker/internal/domain/check"
)

type Factory struct {
	Headless bool
	Timeout  time.Duration
	Log      *zap.Logger
}

// Open launches an isolated browser context. The session inherits ctx, so
// cancelling the run tears the browser down as well.
func (f Factory) Open(ctx context.Context) (check.BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("lang", "en-GB"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx)

	// An empty Run forces the browser process to start now, so launch
	// failures surface here rather than on the first navigation.
	if err := chromedp.Run(pageCtx); err != nil {
		pageCancel()
		allocCancel()
		return nil, check.Wrap(check.KindBrowserLaunch, "browser_open", err)
	}

	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		ctx:     pageCtx,
		cancels: []context.CancelFunc{pageCancel, allocCancel},
		timeout: f.Timeout,
		log:     log,
	}, nil
}

type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	timeout time.Duration

	closeOnce sync.Once
	log       *zap.Logger
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.log.Debug("navigate", zap.String("url", url))
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return check.Wrap(check.KindNavigation, "navigate", err)
	}
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	defer context.AfterFunc(ctx, cancel)()
	return chromedp.Run(tctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var out string
	err := s.run(ctx, chromedp.Text(selector, &out, chromedp.ByQuery))
	return out, err
}

func (s *Session) Evaluate(ctx context.Context, js string, out any) error {
	return s.run(ctx, chromedp.Evaluate(js, out))
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var out string
	err := s.run(ctx, chromedp.Location(&out))
	return out, err
}

// Close tears down the page and the browser process. Safe to call more than
// once and after a crash.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.log.Debug("browser shutdown", zap.Error(err))
		}
		for _, cancel := range s.cancels {
			cancel()
		}
	})
}

// run executes actions with the session timeout while honoring cancellation
// of the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	defer context.AfterFunc(ctx, cancel)()
	return chromedp.Run(tctx, actions...)
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/alhambra-checker/internal/application/usecases"
	"github.com/example/alhambra-checker/internal/domain/check"
	"github.com/example/alhambra-checker/internal/infrastructure/alhambra"
	"github.com/example/alhambra-checker/internal/infrastructure/browser"
	"github.com/example/alhambra-checker/internal/infrastructure/config"
	"github.com/example/alhambra-checker/internal/infrastructure/telegram"
	"github.com/example/alhambra-checker/internal/infrastructure/twocaptcha"
)

type options struct {
	dryRun       bool
	verbose      bool
	testTelegram bool
	noHeadless   bool
}

func NewRoot() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "alhamcheck",
		Short:         "Check Alhambra ticket availability and send Telegram alerts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "check availability without sending notifications")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	cmd.Flags().BoolVar(&opts.testTelegram, "test-telegram", false, "test Telegram bot connection and exit")
	cmd.Flags().BoolVar(&opts.noHeadless, "no-headless", false, "run browser in visible mode (for debugging)")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command and maps the failure to an exit code:
// 0 ok (including "checked, unavailable"), 1 runtime, 2 configuration,
// 3 solver.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRoot().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	kind := check.KindOf(err)
	switch {
	case kind == check.KindConfig:
		return 2
	case check.SolverFailure(kind):
		return 3
	default:
		return 1
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	log := newLogger(opts.verbose)
	defer func() { _ = log.Sync() }()

	if opts.testTelegram {
		if err := cfg.ValidateNotifier(); err != nil {
			return err
		}
		log.Info("testing Telegram connection")
		uc := usecases.TestNotifier{
			Notifier: telegram.New(cfg.TelegramBotToken, cfg.TelegramChatID, telegram.WithLogger(log)),
		}
		if err := uc.Execute(ctx); err != nil {
			return err
		}
		log.Info("Telegram connection successful")
		return nil
	}

	if err := cfg.ValidateCheck(); err != nil {
		return err
	}
	if opts.noHeadless {
		cfg.Headless = false
	}

	log.Info("target dates",
		zap.Strings("dates", formatDates(cfg.Dates)),
		zap.String("ticket_type", cfg.TicketType))

	uc := usecases.RunCheck{
		Sessions: browser.Factory{
			Headless: cfg.Headless,
			Timeout:  cfg.BrowserTimeout,
			Log:      log,
		},
		NewReader: func(s check.BrowserSession) check.AvailabilityReader {
			return alhambra.New(s, alhambra.Config{
				SiteURL:         cfg.SiteURL,
				SiteKeyFallback: cfg.RecaptchaSiteKey,
				Log:             log,
			})
		},
		Solver:       twocaptcha.New(cfg.CaptchaAPIKey, cfg.SolverTimeout, twocaptcha.WithLogger(log)),
		Notifier:     telegram.New(cfg.TelegramBotToken, cfg.TelegramChatID, telegram.WithLogger(log)),
		SiteURL:      cfg.SiteURL,
		NotifyErrors: cfg.NotifyErrors,
		Log:          log,
	}

	out := uc.Execute(ctx, check.Request{
		Dates:      cfg.Dates,
		TicketType: cfg.TicketType,
		DryRun:     opts.dryRun,
	})
	if out.Failure != nil {
		return out.Failure
	}

	log.Info("result",
		zap.String("verdict", string(out.Verdict)),
		zap.Bool("notified", out.Notified),
		zap.Bool("dry_run", out.DryRun))
	return nil
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func formatDates(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format("2006-01-02"))
	}
	return out
}

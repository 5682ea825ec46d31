package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/alhambra-checker/internal/domain/check"
)

const defaultSiteURL = "https://compratickets.alhambra-patronato.es/reservarEntradas.aspx" +
	"?opc=142&gid=432&lg=en-GB&ca=0&m=GENERAL"

// Settings is read once at process start and immutable afterwards.
type Settings struct {
	CaptchaAPIKey    string
	TelegramBotToken string
	TelegramChatID   string

	// Dates to monitor, sorted, all in the same calendar month.
	Dates      []time.Time
	TicketType string

	Headless       bool
	BrowserTimeout time.Duration
	SolverTimeout  time.Duration

	SiteURL          string
	RecaptchaSiteKey string

	NotifyErrors bool
}

// FromEnv loads settings from the environment, reading a .env file first
// when one is present. Malformed values fail here; missing credentials are
// caught by the per-operation Validate methods.
func FromEnv() (Settings, error) {
	_ = godotenv.Load()

	s := Settings{
		CaptchaAPIKey:    strings.TrimSpace(os.Getenv("CAPTCHA_API_KEY")),
		TelegramBotToken: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		TelegramChatID:   strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")),
		TicketType:       envDefault("TICKET_TYPE", "GENERAL"),
		SiteURL:          envDefault("SITE_URL", defaultSiteURL),
		RecaptchaSiteKey: strings.TrimSpace(os.Getenv("RECAPTCHA_SITE_KEY")),
		NotifyErrors:     envBool("NOTIFY_ERRORS", false),
		Headless:         envBool("HEADLESS", true),
	}

	timeoutMs, err := envInt("BROWSER_TIMEOUT", 30000)
	if err != nil {
		return s, err
	}
	if timeoutMs <= 0 {
		return s, configErr(fmt.Errorf("BROWSER_TIMEOUT must be positive, got %d", timeoutMs))
	}
	s.BrowserTimeout = time.Duration(timeoutMs) * time.Millisecond

	solverSec, err := envInt("SOLVER_TIMEOUT", 120)
	if err != nil {
		return s, err
	}
	if solverSec <= 0 {
		return s, configErr(fmt.Errorf("SOLVER_TIMEOUT must be positive, got %d", solverSec))
	}
	s.SolverTimeout = time.Duration(solverSec) * time.Second

	raw := strings.TrimSpace(os.Getenv("TARGET_DATES"))
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("TARGET_DATE"))
	}
	if raw != "" {
		s.Dates, err = parseDates(raw)
		if err != nil {
			return s, err
		}
	}

	return s, nil
}

// ValidateCheck checks everything a full availability run needs.
func (s Settings) ValidateCheck() error {
	var missing []string
	if s.CaptchaAPIKey == "" {
		missing = append(missing, "CAPTCHA_API_KEY")
	}
	if s.TelegramBotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if s.TelegramChatID == "" {
		missing = append(missing, "TELEGRAM_CHAT_ID")
	}
	if len(missing) > 0 {
		return configErr(fmt.Errorf("missing required: %s", strings.Join(missing, ", ")))
	}
	if len(s.Dates) == 0 {
		return configErr(fmt.Errorf("TARGET_DATES is required (comma-separated YYYY-MM-DD)"))
	}
	return nil
}

// ValidateNotifier checks only what the connectivity test needs.
func (s Settings) ValidateNotifier() error {
	if s.TelegramBotToken == "" || s.TelegramChatID == "" {
		return configErr(fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required"))
	}
	return nil
}

func parseDates(raw string) ([]time.Time, error) {
	var dates []time.Time
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", part)
		if err != nil {
			return nil, configErr(fmt.Errorf("invalid target date %q: want YYYY-MM-DD", part))
		}
		dates = append(dates, d)
	}
	if !check.SameMonth(dates) {
		return nil, configErr(fmt.Errorf("all target dates must be in the same month"))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func configErr(err error) error {
	return check.Wrap(check.KindConfig, "config", err)
}

func envDefault(k, d string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	return v
}

func envBool(k string, d bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	if v == "" {
		return d
	}
	return v == "1" || v == "true" || v == "yes"
}

func envInt(k string, d int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, configErr(fmt.Errorf("%s must be an integer, got %q", k, v))
	}
	return n, nil
}

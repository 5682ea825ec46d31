// Package telegram implements the Notifier port against the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/alhambra-checker/internal/domain/check"
)

const defaultBaseURL = "https://api.telegram.org"

type Notifier struct {
	botToken string
	chatID   string
	base     string
	http     *http.Client
	log      *zap.Logger
}

type Option func(*Notifier)

func WithBaseURL(u string) Option {
	return func(n *Notifier) { n.base = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.http = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(n *Notifier) { n.log = l }
}

func New(botToken, chatID string, opts ...Option) *Notifier {
	n := &Notifier{
		botToken: botToken,
		chatID:   chatID,
		base:     defaultBaseURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Send delivers a Markdown message to the configured chat.
func (n *Notifier) Send(ctx context.Context, text string) error {
	payload := map[string]any{
		"chat_id":                  n.chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": false,
	}
	if _, err := n.post(ctx, "sendMessage", payload); err != nil {
		return err
	}
	n.log.Info("telegram message sent", zap.String("chat_id", n.chatID))
	return nil
}

// TestConnection verifies the bot token via getMe and then sends a test
// message to the configured chat.
func (n *Notifier) TestConnection(ctx context.Context) error {
	res, err := n.get(ctx, "getMe")
	if err != nil {
		return err
	}
	var bot struct {
		Username string `json:"username"`
	}
	_ = json.Unmarshal(res.Result, &bot)
	n.log.Info("bot connected", zap.String("username", bot.Username))

	return n.Send(ctx, "Alhambra checker: Telegram connection test OK.")
}

func (n *Notifier) post(ctx context.Context, method string, payload map[string]any) (apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return apiResponse{}, check.Wrap(check.KindNotifierDelivery, "notify", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url(method), bytes.NewReader(body))
	if err != nil {
		return apiResponse{}, check.Wrap(check.KindNotifierDelivery, "notify", err)
	}
	req.Header.Set("content-type", "application/json")
	return n.do(req)
}

func (n *Notifier) get(ctx context.Context, method string) (apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.url(method), nil)
	if err != nil {
		return apiResponse{}, check.Wrap(check.KindNotifierDelivery, "notify", err)
	}
	return n.do(req)
}

func (n *Notifier) do(req *http.Request) (apiResponse, error) {
	resp, err := n.http.Do(req)
	if err != nil {
		return apiResponse{}, check.Wrap(check.KindNotifierDelivery, "notify", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return apiResponse{}, check.Wrap(check.KindNotifierDelivery, "notify",
			fmt.Errorf("telegram response parse: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return out, check.Wrap(check.KindNotifierAuth, "notify",
			fmt.Errorf("telegram auth failed: %s", describe(out, resp.StatusCode)))
	}
	if resp.StatusCode != http.StatusOK || !out.OK {
		return out, check.Wrap(check.KindNotifierDelivery, "notify",
			fmt.Errorf("telegram api error: %s", describe(out, resp.StatusCode)))
	}
	return out, nil
}

func (n *Notifier) url(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", n.base, n.botToken, method)
}

func describe(res apiResponse, status int) string {
	if res.Description != "" {
		return res.Description
	}
	return fmt.Sprintf("http %d", status)
}

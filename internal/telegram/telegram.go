// Package telegram posts a short digest notice to a Telegram chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/deusflow/digest/internal/news"
	"github.com/deusflow/digest/internal/retry"
)

const (
	DefaultAPIBase = "https://api.telegram.org"

	// maxMessage is Telegram's text limit for sendMessage.
	maxMessage  = 4096
	maxHeadings = 5
)

type Notifier struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
	retry   retry.RetryConfig
	log     *slog.Logger
}

type Option func(*Notifier)

// WithAPIBase points the notifier at another Bot API server.
func WithAPIBase(base string) Option {
	return func(n *Notifier) { n.apiBase = strings.TrimRight(base, "/") }
}

func WithRetry(rc retry.RetryConfig) Option { return func(n *Notifier) { n.retry = rc } }

func NewNotifier(token, chatID string, log *slog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		token:   token,
		chatID:  chatID,
		apiBase: DefaultAPIBase,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
		log:     log,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Configured reports whether both token and chat id are set.
func (n *Notifier) Configured() bool {
	return n != nil && n.token != "" && n.chatID != ""
}

// SendDigest announces a written digest: title, introduction, the first
// headlines and the artifact names.
func (n *Notifier) SendDigest(ctx context.Context, title, intro string, articles []news.Article, files map[string]string) error {
	return n.SendMessage(ctx, FormatDigest(title, intro, articles, files))
}

// FormatDigest builds the HTML notice text.
func FormatDigest(title, intro string, articles []news.Article, files map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(title))
	if intro != "" {
		fmt.Fprintf(&b, "\n%s\n", html.EscapeString(intro))
	}

	if len(articles) > 0 {
		b.WriteString("\n")
	}
	for i, a := range articles {
		if i == maxHeadings {
			fmt.Fprintf(&b, "…and %d more\n", len(articles)-maxHeadings)
			break
		}
		if a.URL != "" {
			fmt.Fprintf(&b, "• <a href=\"%s\">%s</a>\n", html.EscapeString(a.URL), html.EscapeString(a.Title))
		} else {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(a.Title))
		}
	}

	if len(files) > 0 {
		formats := make([]string, 0, len(files))
		for f := range files {
			formats = append(formats, f)
		}
		sort.Strings(formats)
		b.WriteString("\n")
		for _, f := range formats {
			fmt.Fprintf(&b, "<i>%s: %s</i>\n", f, html.EscapeString(files[f]))
		}
	}

	text := strings.TrimRight(b.String(), "\n")
	if r := []rune(text); len(r) > maxMessage {
		text = string(r[:maxMessage-3]) + "..."
	}
	return text
}

// SendMessage sends HTML text to the chat, retrying transient failures.
func (n *Notifier) SendMessage(ctx context.Context, text string) error {
	if !n.Configured() {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	attempt := 0
	err := retry.WithRetry(ctx, n.retry, func() error {
		attempt++
		err := n.sendMessageOnce(ctx, text)
		if err != nil {
			n.log.Warn("error sending to Telegram", "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return err
	}
	n.log.Info("message sent to Telegram", "attempt", attempt)
	return nil
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram API error: status %d: %s", e.status, e.body)
}

func (n *Notifier) sendMessageOnce(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)

	payload := map[string]interface{}{
		"chat_id":                  n.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Stop(fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Stop(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			n.log.Warn("failed to close response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	apiErr := &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	// 4xx other than rate limiting will not succeed on retry.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Stop(apiErr)
	}
	return apiErr
}

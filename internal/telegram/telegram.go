// Package telegram delivers plain-text messages through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/worldnews/internal/retry"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	maxMessageLen  = 4096
)

type Client struct {
	Token   string
	ChatID  string
	BaseURL string
	HTTP    *http.Client

	MaxRetries int
	Delay      time.Duration
	Logger     *slog.Logger
}

func New(token, chatID string, log *slog.Logger) *Client {
	return &Client{
		Token:      token,
		ChatID:     chatID,
		BaseURL:    defaultBaseURL,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		MaxRetries: 3,
		Delay:      2 * time.Second,
		Logger:     log,
	}
}

// SendMessage posts text to the configured chat, retrying with 2s, 4s... backoff.
// Requests Telegram rejects (bad token, unknown chat) are not retried.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if r := []rune(text); len(r) > maxMessageLen {
		text = string(r[:maxMessageLen-3]) + "..."
	}
	err := retry.WithRetry(ctx, retry.RetryConfig{
		MaxAttempts: c.MaxRetries,
		Delay:       c.Delay,
		Backoff:     true,
		Logger:      c.Logger,
		Name:        "telegram",
	}, func(ctx context.Context) error {
		return c.sendMessageOnce(ctx, text)
	})
	if err != nil {
		return fmt.Errorf("can't send message: %w", err)
	}
	c.Logger.Info("message sent to Telegram", "chat_id", c.ChatID)
	return nil
}

func (c *Client) sendMessageOnce(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.BaseURL, c.Token)

	payload := map[string]interface{}{
		"chat_id":                  c.ChatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("error make JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}

// Package dialogue forwards user text to the external dialogue service
// and normalizes its replies. The service is never allowed to crash a
// session: exhausted retries yield a fixed fallback string.
package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	// FallbackUnreachable is returned when every attempt failed.
	FallbackUnreachable = "Sorry, I couldn't reach the assistant right now."

	// FallbackEmpty is returned when the service answered with nothing usable.
	FallbackEmpty = "I'm not sure how to respond to that."
)

type request struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type replyPart struct {
	Text string `json:"text"`
}

// Client talks to a webhook-style dialogue endpoint.
type Client struct {
	url     string
	retries int
	client  *http.Client
}

func NewClient(url string, retries int, timeout time.Duration) *Client {
	if retries <= 0 {
		retries = 2
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:     strings.TrimSpace(url),
		retries: retries,
		client:  &http.Client{Timeout: timeout},
	}
}

// Reply sends the message and returns the assistant's reply text. The
// error return is informational; the string is always usable.
func (c *Client) Reply(ctx context.Context, sender, message string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		text, err := c.attempt(ctx, sender, message)
		if err == nil {
			return text, nil
		}
		lastErr = err
		log.Printf("dialogue: attempt %d/%d: %v", attempt, c.retries, err)
		if ctx.Err() != nil {
			break
		}
	}
	return FallbackUnreachable, fmt.Errorf("dialogue service unreachable: %w", lastErr)
}

func (c *Client) attempt(ctx context.Context, sender, message string) (string, error) {
	payload, err := json.Marshal(request{Sender: sender, Message: message})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("dialogue http status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parts []replyPart
	if err := json.Unmarshal(body, &parts); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.Text) != "" {
			texts = append(texts, p.Text)
		}
	}
	if len(texts) == 0 {
		log.Printf("dialogue: service returned empty response")
		return FallbackEmpty, nil
	}
	return strings.Join(texts, " "), nil
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultResendURL is the Resend send-email endpoint.
const DefaultResendURL = "https://api.resend.com/emails"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("notify: email service not configured")

// Message is one outbound email.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Sender delivers a message and returns the provider's delivery id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	Code int
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("resend error %d: %s", e.Code, e.Body)
}

// ResendClient sends email through the Resend HTTP API.
type ResendClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewResendClient creates a client allowing perSecond requests per second.
func NewResendClient(apiKey string, perSecond float64) *ResendClient {
	if perSecond <= 0 {
		perSecond = 2
	}
	return &ResendClient{
		apiKey:     apiKey,
		endpoint:   DefaultResendURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// WithEndpoint points the client at another URL.
func (c *ResendClient) WithEndpoint(url string) *ResendClient {
	c.endpoint = url
	return c
}

// Send posts msg to Resend.
func (c *ResendClient) Send(ctx context.Context, msg Message) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{Code: resp.StatusCode, Body: string(body)}
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode resend response: %w", err)
	}
	return out.ID, nil
}

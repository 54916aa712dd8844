// Package messagestore retrieves raw laboratory messages by accession number,
// used to illustrate exemplar records in the audit document.
package messagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Message is one stored laboratory message.
type Message struct {
	Accession  string    `json:"accession"`
	ResultTest string    `json:"result_test"`
	Body       string    `json:"message"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
	RequestID  string    `json:"-"`
}

// Client talks to the message store HTTP API.
type Client struct {
	httpClient       *http.Client
	token            string
	baseURL          string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// NewClient builds a client with HTTP timeout and retry/backoff settings.
// Zero values fall back to 60s, 3 attempts, 500ms and 4s.
func NewClient(baseURL, token string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("message store url is not configured")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse message store url: %w", err)
	}
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: httpTimeout},
		token:            token,
		baseURL:          baseURL,
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
	}, nil
}

// FetchMessage returns the message for accession, retrying 429, 5xx and
// network timeouts with exponential backoff.
func (c *Client) FetchMessage(ctx context.Context, accession, resultText string) (*Message, error) {
	if strings.TrimSpace(accession) == "" {
		return nil, errors.New("accession cannot be empty")
	}
	q := url.Values{}
	q.Set("accession", accession)
	if resultText != "" {
		q.Set("result_test", resultText)
	}
	endpoint := c.baseURL + "/messages?" + q.Encode()

	backoff := c.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, wait, err := c.do(ctx, endpoint, accession)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if wait < 0 || attempt == c.retryMaxAttempts {
			break
		}
		if wait == 0 {
			wait = withJitter(backoff)
			backoff *= 2
		}
		if wait > c.retryMaxDelay {
			wait = c.retryMaxDelay
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// do performs one attempt. wait < 0 means the error is final; wait > 0 is a
// server-requested delay; wait == 0 means retry with backoff.
func (c *Client) do(ctx context.Context, endpoint, accession string) (*Message, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isRetryableNetErr(err) {
			return nil, 0, &UnreachableError{Host: c.baseURL, Err: err}
		}
		return nil, -1, &UnreachableError{Host: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var m Message
		if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
			return nil, -1, fmt.Errorf("decode message: %w", err)
		}
		if m.Accession == "" {
			m.Accession = accession
		}
		m.RequestID = extractRequestID(resp)
		return &m, 0, nil
	}

	apiErr := decodeAPIError(resp)
	classified := classify(apiErr, resp, accession)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if rl, ok := classified.(*RateLimitError); ok && rl.RetryAfter > 0 {
			return nil, rl.RetryAfter, classified
		}
		return nil, 0, classified
	case resp.StatusCode >= 500:
		return nil, 0, classified
	}
	return nil, -1, classified
}

func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: extractRequestID(resp)}
	var raw map[string]any
	if json.Unmarshal(body, &raw) != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}
	src := raw
	if inner, ok := raw["error"].(map[string]any); ok {
		src = inner
	}
	if msg, ok := src["message"].(string); ok {
		apiErr.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		apiErr.Code = code
	}
	return apiErr
}

func classify(apiErr *APIError, resp *http.Response, accession string) error {
	switch sc := apiErr.StatusCode; {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusNotFound:
		return &NotFoundError{APIError: apiErr, Accession: accession}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds accepts delta-seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

func extractRequestID(resp *http.Response) string {
	for _, k := range []string{"X-Request-Id", "X-Correlation-Id"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter applies +/- 20% jitter.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	out := time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	if out <= 0 {
		return d
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

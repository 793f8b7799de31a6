// Package captcha calls the portal's human verification service.
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/desk-booking/internal/booking"
	"github.com/iliyamo/desk-booking/internal/logger"
	"github.com/iliyamo/desk-booking/internal/metrics"
)

const verifyPath = "/captcha/v1/Captcha/Verify"

// ErrUnexpectedStatus is wrapped into errors for 5xx and other answers
// that are neither an acceptance nor a rejection.
var ErrUnexpectedStatus = errors.New("captcha: unexpected status")

// Client verifies challenge tokens.  It implements booking.Verifier.
type Client struct {
	hc         *http.Client
	baseURL    string
	configName string
	log        *logger.Logger
	metrics    *metrics.Metrics
}

var _ booking.Verifier = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }
func WithLogger(l *logger.Logger) Option    { return func(c *Client) { c.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

func New(baseURL, configName string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		hc:         &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		configName: configName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// verifyResponse covers the shapes the service answers with.  Fields that
// are absent leave the HTTP status as the verdict.
type verifyResponse struct {
	Success *bool `json:"success"`
	IsValid *bool `json:"isValid"`
}

// Verify asks the service whether token solves the configured challenge.
// A 2xx answer accepts unless the body says otherwise; 400, 401, 403 and
// 422 reject; anything else, or a transport failure, is an error.
func (c *Client) Verify(ctx context.Context, token string) (bool, error) {
	query := map[string]string{
		"VerificationCode":  token,
		"ConfigurationName": c.configName,
	}
	status, body, err := c.do(ctx, http.MethodGet, c.baseURL+verifyPath, query, nil)
	if err != nil {
		c.metrics.ObserveVerification("error")
		c.log.Error("CAPTCHA", fmt.Sprintf("verify request failed: %v", err))
		return false, fmt.Errorf("captcha verify: %w", err)
	}

	switch {
	case status >= 200 && status < 300:
		ok := accepted(body)
		c.metrics.ObserveVerification(verdict(ok))
		return ok, nil
	case status == http.StatusBadRequest, status == http.StatusUnauthorized,
		status == http.StatusForbidden, status == http.StatusUnprocessableEntity:
		c.metrics.ObserveVerification("rejected")
		c.log.LogSecurity("CAPTCHA_REJECTED", fmt.Sprintf("status=%d", status))
		return false, nil
	default:
		c.metrics.ObserveVerification("error")
		return false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
}

func accepted(body []byte) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	var r verifyResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return true
	}
	if r.Success != nil && !*r.Success {
		return false
	}
	if r.IsValid != nil && !*r.IsValid {
		return false
	}
	return true
}

func verdict(ok bool) string {
	if ok {
		return "accepted"
	}
	return "rejected"
}

func (c *Client) do(ctx context.Context, method, rawURL string, query map[string]string, body []byte) (int, []byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, nil, err
	}
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"taifexflow/config"
	"taifexflow/logger"
)

// Client is the HTTP transport shared by both pipelines. The exchange is a
// public site, so requests go through a rate limiter and carry an explicit
// User-Agent and a bounded timeout.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	log       *logger.Log
}

// NewClient creates a client from the http section of the configuration.
func NewClient(cfg config.HTTPConfig, log *logger.Log) *Client {
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		userAgent: cfg.UserAgent,
		log:       log,
	}
}

// Get issues a rate-limited GET and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

// PostForm issues a rate-limited form POST and returns the response body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.log.WithComponent("fetcher").WithFields(logger.Fields{
		"method": req.Method,
		"url":    req.URL.String(),
	}).Debug("issuing request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

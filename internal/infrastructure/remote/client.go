// Package remote implements the auth and document gateways against the
// extraction service's HTTP API.
package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/core/ports"
)

const defaultTimeout = 120 * time.Second

// Config captures the settings for reaching the remote service.
type Config struct {
	BaseURL string
	// Timeout bounds a whole request, upload and download included.
	// Extraction is slow, so the default is generous.
	Timeout time.Duration
}

// Client talks to the remote service. It implements ports.AuthAPI and
// ports.DocumentAPI; every error it returns is a *domain.AuthError.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

var (
	_ ports.AuthAPI     = (*Client)(nil)
	_ ports.DocumentAPI = (*Client)(nil)
)

// New validates cfg and builds a Client.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base URL must have a host, got %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http: httpClient,
		log:  log.With().Str("component", "remote").Logger(),
	}, nil
}

// Health calls the unauthenticated liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return c.transportError("health", err)
	}
	if resp.IsError() {
		return c.statusError("health", resp.StatusCode(), resp.Status(), resp.Body())
	}
	return nil
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// send runs req and decodes a 2xx JSON body into out (when non-nil). Any
// other outcome is normalized.
func (c *Client) send(op, method, path string, req *resty.Request, out any) error {
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return c.transportError(op, err)
	}
	if resp.IsError() {
		return c.statusError(op, resp.StatusCode(), resp.Status(), resp.Body())
	}
	c.log.Debug().Str("operation", op).Int("status", resp.StatusCode()).Dur("elapsed", resp.Time()).Msg("request ok")
	return nil
}

func (c *Client) transportError(op string, err error) *domain.AuthError {
	c.log.Warn().Err(err).Str("operation", op).Msg("request did not reach the server")
	return &domain.AuthError{Kind: domain.KindNetwork, Message: "could not reach server"}
}

func (c *Client) statusError(op string, status int, statusText string, body []byte) *domain.AuthError {
	ae := normalize(status, statusText, body)
	c.log.Debug().Str("operation", op).Int("status", status).Str("kind", string(ae.Kind)).Msg("request failed")
	return ae
}

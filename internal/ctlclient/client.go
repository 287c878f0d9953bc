// Package ctlclient talks to the honeypot control API.
package ctlclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/honeytrace/honeypot/internal/lifecycle"
)

// APIError is a non-2xx reply carrying the server's error envelope.
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("control api: http=%d", e.HTTPStatus)
	}
	return fmt.Sprintf("control api: %s (%s)", e.Message, e.Code)
}

type errorEnvelope struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("control url is empty")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *Client) Start(ctx context.Context) (lifecycle.Result, error) {
	var res lifecycle.Result
	err := c.do(ctx, http.MethodPost, "/api/v1/honeypot/start", &res)
	return res, err
}

func (c *Client) Stop(ctx context.Context) (lifecycle.Result, error) {
	var res lifecycle.Result
	err := c.do(ctx, http.MethodPost, "/api/v1/honeypot/stop", &res)
	return res, err
}

func (c *Client) Restart(ctx context.Context) (lifecycle.Result, error) {
	var res lifecycle.Result
	err := c.do(ctx, http.MethodPost, "/api/v1/honeypot/restart", &res)
	return res, err
}

func (c *Client) Status(ctx context.Context) (lifecycle.Status, error) {
	var st lifecycle.Status
	err := c.do(ctx, http.MethodGet, "/api/v1/honeypot/status", &st)
	return st, err
}

func (c *Client) Health(ctx context.Context) (lifecycle.Health, error) {
	var h lifecycle.Health
	err := c.do(ctx, http.MethodGet, "/api/v1/health", &h)
	return h, err
}

// WaitReady polls health with exponential backoff until the daemon answers
// or ctx ends.
func (c *Client) WaitReady(ctx context.Context) (lifecycle.Health, error) {
	backoff := 250 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		h, err := c.Health(ctx)
		if err == nil {
			return h, nil
		}
		slog.Debug("control api not ready", "error", err, "backoff", backoff.String())

		select {
		case <-ctx.Done():
			return lifecycle.Health{}, fmt.Errorf("wait ready: %w", errors.Join(ctx.Err(), err))
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(body, &env) == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("control api parse error: %w", err)
	}
	return nil
}

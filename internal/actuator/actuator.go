// Package actuator triggers the door unlock over HTTP.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/icholy/digest"

	"github.com/kozaktomas/facegate/internal/config"
)

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 512

// HTTPActuator requests the configured URL and treats any 2xx as an unlock.
type HTTPActuator struct {
	url      string
	username string
	password string
	auth     string
	client   *http.Client
}

// newClient answers digest challenges in the transport, which also reuses the
// nonce across unlocks with an incrementing nonce count.
func newClient(cfg config.ActuatorConfig, auth string) *http.Client {
	client := &http.Client{Timeout: cfg.Timeout}
	if auth == config.AuthDigest {
		client.Transport = &digest.Transport{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	return client
}

// New builds an actuator from configuration. The URL is required.
func New(cfg config.ActuatorConfig) (*HTTPActuator, error) {
	if cfg.URL == "" {
		return nil, errors.New("actuator URL is not configured")
	}
	auth := strings.ToLower(cfg.Auth)
	switch auth {
	case config.AuthNone, config.AuthBasic, config.AuthDigest:
	case "":
		auth = config.AuthNone
	default:
		return nil, fmt.Errorf("unknown actuator auth %q", cfg.Auth)
	}
	return &HTTPActuator{
		url:      cfg.URL,
		username: cfg.Username,
		password: cfg.Password,
		auth:     auth,
		client:   newClient(cfg, auth),
	}, nil
}

// Unlock sends the request. Digest challenges are handled by the client transport.
func (a *HTTPActuator) Unlock(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if a.auth == config.AuthBasic {
		req.SetBasicAuth(a.username, a.password)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("actuator error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// DryRun logs unlocks instead of performing them.
type DryRun struct {
	logger *slog.Logger
}

// NewDryRun creates a DryRun actuator.
func NewDryRun(logger *slog.Logger) *DryRun {
	return &DryRun{logger: logger}
}

// Unlock only logs.
func (d *DryRun) Unlock(ctx context.Context) error {
	d.logger.InfoContext(ctx, "dry run: unlock skipped", "at", time.Now().Format(time.RFC3339))
	return nil
}

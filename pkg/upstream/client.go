// Package upstream implements the HTTP client for the remote reporting
// authority: tenant catalogs, per-user grants and pinned-report preferences.
//
// The authority owns all of this data; the engine is a client. Every
// operation returns success-with-payload, success-empty or a classified
// failure (ErrUnavailable, ErrMalformed, ErrInvalidInput) — HTTP status
// codes never leak past this package.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/raporhub/raporhub/pkg/catalog"
	"github.com/raporhub/raporhub/pkg/observability"
)

// Config holds authority client configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the reporting authority over HTTP
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewClient creates an authority client. metrics may be nil.
func NewClient(cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger,
		metrics: metrics,
	}
}

type grantsPayload struct {
	ReportIDs []int64 `json:"report_ids"`
}

type prefsPayload struct {
	PinnedReportIDs []string `json:"pinned_report_ids"`
}

// GetCatalog retrieves the full report catalog provisioned to a tenant.
// An error means "catalog unknown", not "catalog empty".
func (c *Client) GetCatalog(ctx context.Context, tenantID int64) ([]catalog.Report, error) {
	const op = "get_catalog"
	var out struct {
		Reports []catalog.Report `json:"reports"`
	}
	if err := c.call(ctx, op, http.MethodGet, fmt.Sprintf("/tenants/%d/reports", tenantID), nil, &out); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

// GetGrants retrieves the report ids explicitly granted to a user
func (c *Client) GetGrants(ctx context.Context, userID int64) ([]int64, error) {
	const op = "get_grants"
	var out grantsPayload
	if err := c.call(ctx, op, http.MethodGet, fmt.Sprintf("/users/%d/grants", userID), nil, &out); err != nil {
		return nil, err
	}
	return out.ReportIDs, nil
}

// AddGrants grants the given reports to a user. Idempotent on the authority
// side: re-adding an existing grant is a no-op. An empty set is rejected
// before any network call.
func (c *Client) AddGrants(ctx context.Context, userID int64, reportIDs []int64) error {
	const op = "add_grants"
	if len(reportIDs) == 0 {
		return fmt.Errorf("%w: add requires a non-empty report id set", ErrInvalidInput)
	}
	return c.call(ctx, op, http.MethodPost, fmt.Sprintf("/users/%d/grants", userID), grantsPayload{ReportIDs: reportIDs}, nil)
}

// RemoveGrants revokes the given reports from a user. A nil set means
// "remove every grant" and is sent as JSON null; an empty non-nil set means
// "remove nothing" and short-circuits without a network call. The two are
// deliberately distinct signals.
func (c *Client) RemoveGrants(ctx context.Context, userID int64, reportIDs []int64) error {
	const op = "remove_grants"
	if reportIDs != nil && len(reportIDs) == 0 {
		return nil
	}
	return c.call(ctx, op, http.MethodDelete, fmt.Sprintf("/users/%d/grants", userID), grantsPayload{ReportIDs: reportIDs}, nil)
}

// GetPreferences retrieves a user's pinned report ids
func (c *Client) GetPreferences(ctx context.Context, userID int64) ([]string, error) {
	const op = "get_preferences"
	var out prefsPayload
	if err := c.call(ctx, op, http.MethodGet, fmt.Sprintf("/users/%d/preferences/pinned", userID), nil, &out); err != nil {
		return nil, err
	}
	return out.PinnedReportIDs, nil
}

// SetPreferences replaces a user's pinned report ids
func (c *Client) SetPreferences(ctx context.Context, userID int64, ids []string) error {
	const op = "set_preferences"
	if ids == nil {
		ids = []string{}
	}
	return c.call(ctx, op, http.MethodPut, fmt.Sprintf("/users/%d/preferences/pinned", userID), prefsPayload{PinnedReportIDs: ids}, nil)
}

// Ping checks authority reachability, used by the readiness probe
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", http.MethodGet, "/ping", nil, nil)
}

// call issues one authority request and classifies the outcome. body is
// marshalled as JSON when non-nil; out is decoded into when non-nil.
func (c *Client) call(ctx context.Context, op, method, path string, body, out interface{}) error {
	start := time.Now()
	err := c.do(ctx, op, method, path, body, out)
	if c.metrics != nil {
		c.metrics.ObserveUpstreamRequest(op, err, time.Since(start))
	}
	if err != nil {
		c.logger.WithError(err).WithField("op", op).Debug("Authority call failed")
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return unavailable(op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return rejected(op, resp.StatusCode)
		}
		return unavailable(op, resp.StatusCode, nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return malformed(op, err)
		}
	}
	return nil
}

// Package compute is a typed client for the Yandex Cloud Compute REST
// API: instance state, lifecycle commands, disk snapshots and the
// long-running operations they produce.
package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shilovk/yandex-cloud-tools/internal/telemetry"
)

// Endpoints are the service base URLs. The compute and operation
// services live on different hosts.
type Endpoints struct {
	Instances  string
	Snapshots  string
	Operations string
}

// DefaultEndpoints returns the public Yandex Cloud service URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Instances:  "https://compute.api.cloud.yandex.net/compute/v1/instances",
		Snapshots:  "https://compute.api.cloud.yandex.net/compute/v1/snapshots",
		Operations: "https://operation.api.cloud.yandex.net/operations",
	}
}

func (e Endpoints) normalize() Endpoints {
	e.Instances = strings.TrimRight(e.Instances, "/")
	e.Snapshots = strings.TrimRight(e.Snapshots, "/")
	e.Operations = strings.TrimRight(e.Operations, "/")
	return e
}

// TokenSource supplies the bearer token attached to every API call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Option configures the Client.
type Option func(*Client)

// WithEndpoints overrides the service base URLs.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) { c.endpoints = e.normalize() }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetryPolicy overrides how transient failures are retried.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client is the Yandex Cloud Compute API client.
type Client struct {
	endpoints  Endpoints
	tokens     TokenSource
	httpClient *http.Client
	retry      RetryPolicy
	logger     *slog.Logger
}

// NewClient creates a compute client authenticating with tokens.
func NewClient(tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		endpoints:  DefaultEndpoints(),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      DefaultRetryPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiMessage is the error body the API returns alongside non-2xx
// statuses.
type apiMessage struct {
	Message string `json:"message"`
}

func (c *Client) doRequest(ctx context.Context, op, method, rawURL string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		payload = data
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	var resp *http.Response
	err = c.retry.Do(ctx, c.logger, op, func() error {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Request-Id", ulid.Make().String())

		r, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request %s: %w", op, err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("compute api call",
		"op", op,
		"method", method,
		"url", rawURL,
		"status", resp.StatusCode,
	)
	telemetry.APIRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var msg apiMessage
		if err := json.NewDecoder(resp.Body).Decode(&msg); err == nil {
			apiErr.Message = msg.Message
		}
		return nil, apiErr
	}

	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, rawURL string, body, result interface{}) error {
	resp, err := c.doRequest(ctx, op, method, rawURL, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// GetInstance fetches the instance metadata document. A missing
// instance yields ErrNotFound.
func (c *Client) GetInstance(ctx context.Context, id string) (*Instance, error) {
	var inst Instance
	err := c.doJSON(ctx, "get_instance", http.MethodGet, c.endpoints.Instances+"/"+id, nil, &inst)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("instance %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &inst, nil
}

// StartInstance asks the provider to boot the instance and returns the
// operation tracking the power-on.
func (c *Client) StartInstance(ctx context.Context, id string) (*Operation, error) {
	return c.instanceAction(ctx, "start_instance", id, "start")
}

// StopInstance asks the provider to shut the instance down.
func (c *Client) StopInstance(ctx context.Context, id string) (*Operation, error) {
	return c.instanceAction(ctx, "stop_instance", id, "stop")
}

// RestartInstance asks the provider to reboot the instance in place.
func (c *Client) RestartInstance(ctx context.Context, id string) (*Operation, error) {
	return c.instanceAction(ctx, "restart_instance", id, "restart")
}

func (c *Client) instanceAction(ctx context.Context, op, id, action string) (*Operation, error) {
	var result Operation
	url := c.endpoints.Instances + "/" + id + ":" + action
	if err := c.doJSON(ctx, op, http.MethodPost, url, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListSnapshots returns every snapshot in the folder, following
// pagination to the end.
func (c *Client) ListSnapshots(ctx context.Context, folderID string) ([]Snapshot, error) {
	var all []Snapshot
	pageToken := ""
	for {
		u := c.endpoints.Snapshots + "?folderId=" + url.QueryEscape(folderID)
		if pageToken != "" {
			u += "&pageToken=" + url.QueryEscape(pageToken)
		}
		var page struct {
			Snapshots     []Snapshot `json:"snapshots"`
			NextPageToken string     `json:"nextPageToken"`
		}
		if err := c.doJSON(ctx, "list_snapshots", http.MethodGet, u, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Snapshots...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// CreateSnapshot starts a snapshot of one disk. A quota rejection
// yields ErrQuotaExceeded carrying the provider's message.
func (c *Client) CreateSnapshot(ctx context.Context, req CreateSnapshotRequest) (*Operation, error) {
	var result Operation
	err := c.doJSON(ctx, "create_snapshot", http.MethodPost, c.endpoints.Snapshots, req, &result)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("snapshot %s: %w: %s", req.Name, ErrQuotaExceeded, apiErr.Message)
		}
		return nil, err
	}
	return &result, nil
}

// DeleteSnapshot removes a snapshot by ID and returns the operation
// tracking the deletion.
func (c *Client) DeleteSnapshot(ctx context.Context, id string) (*Operation, error) {
	var result Operation
	err := c.doJSON(ctx, "delete_snapshot", http.MethodDelete, c.endpoints.Snapshots+"/"+id, nil, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOperation fetches the current state of a long-running operation.
func (c *Client) GetOperation(ctx context.Context, id string) (*Operation, error) {
	var result Operation
	err := c.doJSON(ctx, "get_operation", http.MethodGet, c.endpoints.Operations+"/"+id, nil, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

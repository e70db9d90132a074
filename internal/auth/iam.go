// Package auth exchanges a long-lived Yandex Passport OAuth token for
// the short-lived IAM token the compute API authenticates with.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shilovk/yandex-cloud-tools/internal/compute"
)

// DefaultEndpoint is the public IAM token service URL.
const DefaultEndpoint = "https://iam.api.cloud.yandex.net/iam/v1/tokens"

// Credential is an issued IAM token and its expiry.
type Credential struct {
	IAMToken  string
	ExpiresAt time.Time
}

// Option configures the Exchanger.
type Option func(*Exchanger)

// WithEndpoint overrides the IAM service URL.
func WithEndpoint(url string) Option {
	return func(e *Exchanger) { e.endpoint = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Exchanger) { e.httpClient = hc }
}

// WithRetryPolicy overrides how transient failures are retried.
func WithRetryPolicy(p compute.RetryPolicy) Option {
	return func(e *Exchanger) { e.retry = p }
}

// WithLogger sets the logger for exchange diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exchanger) { e.logger = logger }
}

// Exchanger performs the OAuth-to-IAM token exchange.
type Exchanger struct {
	endpoint   string
	httpClient *http.Client
	retry      compute.RetryPolicy
	logger     *slog.Logger
}

// NewExchanger creates an Exchanger against the public IAM service.
func NewExchanger(opts ...Option) *Exchanger {
	e := &Exchanger{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      compute.DefaultRetryPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exchange swaps the OAuth token for an IAM credential. Any non-200
// response is an error; callers treat it as fatal since no API call
// can succeed without a token.
func (e *Exchanger) Exchange(ctx context.Context, oauthToken string) (Credential, error) {
	payload, err := json.Marshal(map[string]string{
		"yandexPassportOauthToken": oauthToken,
	})
	if err != nil {
		return Credential{}, fmt.Errorf("marshal exchange request: %w", err)
	}

	var resp *http.Response
	err = e.retry.Do(ctx, e.logger, "iam_exchange", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		r, err := e.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request iam exchange: %w", err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return Credential{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return Credential{}, fmt.Errorf("iam exchange: status %d: %s", resp.StatusCode, msg.Message)
	}

	var body struct {
		IAMToken  string `json:"iamToken"`
		ExpiresAt string `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Credential{}, fmt.Errorf("decode iam response: %w", err)
	}
	if body.IAMToken == "" {
		return Credential{}, errors.New("iam exchange: response carried no token")
	}

	cred := Credential{IAMToken: body.IAMToken}
	if t, err := time.Parse(time.RFC3339, body.ExpiresAt); err == nil {
		cred.ExpiresAt = t
	} else {
		// The service always sets expiresAt; tolerate its absence by
		// assuming a short lifetime.
		cred.ExpiresAt = time.Now().Add(time.Hour)
	}

	e.logger.Debug("iam token issued", "expires_at", cred.ExpiresAt)
	return cred, nil
}

// Package m2m provides a typed client for the M2M catalog/ordering JSON API
// with error classification, retry with backoff, and request pacing.
package m2m

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/geoharvest/m2m-harvester/pkg/logging"
	"github.com/geoharvest/m2m-harvester/pkg/ratelimit"
)

// Endpoint names of the catalog API.
const (
	EndpointLogin            = "login"
	EndpointLogout           = "logout"
	EndpointDatasetSearch    = "dataset-search"
	EndpointSceneSearch      = "scene-search"
	EndpointDownloadOptions  = "download-options"
	EndpointDownloadRequest  = "download-request"
	EndpointDownloadRetrieve = "download-retrieve"
)

// Prometheus metrics for catalog API operations.
var (
	m2mRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "m2m_requests_total",
		Help: "Total catalog API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	m2mRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "m2m_request_duration_seconds",
		Help:    "Catalog API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	m2mErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "m2m_errors_total",
		Help: "Total catalog API errors by class",
	}, []string{"class"})
)

// Client is the catalog API client. It performs no caching and holds no
// session state; sessions are created by Login and passed to every call
// that needs one.
type Client struct {
	httpClient *http.Client
	config     Config
	gate       *ratelimit.Gate
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// ServiceURL is the API base URL, ending in a slash.
	ServiceURL string

	// UserAgent identifies the harvester to the provider.
	UserAgent string

	// Timeout for individual catalog calls.
	Timeout time.Duration

	// RateLimit is the steady-state request pace in requests per second.
	RateLimit float64
}

// DefaultConfig returns a safe default configuration for a service URL.
func DefaultConfig(serviceURL string) Config {
	return Config{
		ServiceURL: serviceURL,
		UserAgent:  "m2m-harvester/1.0",
		Timeout:    60 * time.Second,
		RateLimit:  2,
	}
}

// New creates a new catalog API client.
func New(cfg Config) (*Client, error) {
	if cfg.ServiceURL == "" {
		return nil, fmt.Errorf("service URL is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	logger := logging.NewLogger("m2m-client")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		gate:   ratelimit.New(cfg.RateLimit, 1, logger),
		logger: logger,
	}, nil
}

// envelope is the wire-level response wrapper. A non-null errorCode marks
// an application-level failure regardless of HTTP status.
type envelope struct {
	ErrorCode    *string         `json:"errorCode"`
	ErrorMessage string          `json:"errorMessage"`
	Data         json.RawMessage `json:"data"`
}

// call performs a single request/response against one endpoint. It never
// retries; retry policy lives in the endpoint wrappers, which know the
// semantics of what they call. A session of nil sends no auth token (only
// login is valid without one).
func (c *Client) call(ctx context.Context, session *Session, endpoint string, payload, out any) error {
	if err := c.gate.Wait(ctx); err != nil {
		return &APIError{Endpoint: endpoint, Class: ErrorClassNetwork, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServiceURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if session != nil {
		req.Header.Set("X-Auth-Token", session.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	m2mRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		m2mErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		m2mRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Catalog request failed")
		return &APIError{Endpoint: endpoint, Class: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	m2mRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		m2mErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Err: err}
	}

	if class := classifyStatus(resp.StatusCode); class != "" {
		if class == ErrorClassRateLimit {
			c.gate.Cooldown(retryAfter(resp))
		}
		m2mErrorsTotal.WithLabelValues(string(class)).Inc()
		apiErr := &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    resp.Status,
		}
		// The body may still carry a provider code worth surfacing.
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.ErrorCode != nil {
			apiErr.Code = *env.ErrorCode
			apiErr.Message = env.ErrorMessage
		}
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Catalog request error")
		return apiErr
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		m2mErrorsTotal.WithLabelValues(string(ErrorClassProvider)).Inc()
		return &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassProvider,
			Message:    "malformed response envelope",
			Err:        err,
		}
	}

	if env.ErrorCode != nil {
		class := classifyCode(*env.ErrorCode)
		if class == ErrorClassRateLimit {
			c.gate.Cooldown(retryAfter(resp))
		}
		m2mErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("error_code", *env.ErrorCode).
			Str("error_class", string(class)).
			Msg("Catalog request returned provider error")
		return &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      class,
			Code:       *env.ErrorCode,
			Message:    env.ErrorMessage,
		}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{
				Endpoint:   endpoint,
				StatusCode: resp.StatusCode,
				Class:      ErrorClassProvider,
				Message:    "malformed response data",
				Err:        err,
			}
		}
	}

	return nil
}

// invoke wraps call in the per-class retry policy.
func (c *Client) invoke(ctx context.Context, session *Session, endpoint string, payload, out any) error {
	return retryWithBackoff(ctx, c.logger.With().Str("endpoint", endpoint).Logger(), func() error {
		return c.call(ctx, session, endpoint, payload, out)
	})
}

// Login authenticates and returns a session whose token is attached to all
// subsequent calls. Bad credentials are an auth-class error and are never
// retried.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	payload := map[string]string{"username": username, "password": password}

	var token string
	if err := c.invoke(ctx, nil, EndpointLogin, payload, &token); err != nil {
		return nil, err
	}

	c.logger.Info().Msg("Logged in to catalog API")
	return &Session{Token: token, BaseURL: c.config.ServiceURL}, nil
}

// Logout invalidates the session token.
func (c *Client) Logout(ctx context.Context, session *Session) error {
	if session == nil {
		return ErrNotLoggedIn
	}
	if err := c.invoke(ctx, session, EndpointLogout, nil, nil); err != nil {
		return err
	}
	c.logger.Info().Msg("Logged out of catalog API")
	return nil
}

// DatasetSearch finds datasets matching the request.
func (c *Client) DatasetSearch(ctx context.Context, session *Session, req DatasetSearchRequest) ([]Dataset, error) {
	if session == nil {
		return nil, ErrNotLoggedIn
	}
	var datasets []Dataset
	if err := c.invoke(ctx, session, EndpointDatasetSearch, req, &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// SceneSearch fetches one page of catalog hits.
func (c *Client) SceneSearch(ctx context.Context, session *Session, req SceneSearchRequest) (*SceneSearchResponse, error) {
	if session == nil {
		return nil, ErrNotLoggedIn
	}
	var resp SceneSearchResponse
	if err := c.invoke(ctx, session, EndpointSceneSearch, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadOptions looks up the orderable products for a batch of records.
func (c *Client) DownloadOptions(ctx context.Context, session *Session, req DownloadOptionsRequest) ([]ProductOption, error) {
	if session == nil {
		return nil, ErrNotLoggedIn
	}
	var options []ProductOption
	if err := c.invoke(ctx, session, EndpointDownloadOptions, req, &options); err != nil {
		return nil, err
	}
	return options, nil
}

// DownloadRequest submits an order for a batch of items under a label.
func (c *Client) DownloadRequest(ctx context.Context, session *Session, req DownloadRequestRequest) (*DownloadRequestResponse, error) {
	if session == nil {
		return nil, ErrNotLoggedIn
	}
	var resp DownloadRequestResponse
	if err := c.invoke(ctx, session, EndpointDownloadRequest, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadRetrieve reports the current fulfillment state of an order label.
func (c *Client) DownloadRetrieve(ctx context.Context, session *Session, label string) (*DownloadRetrieveResponse, error) {
	if session == nil {
		return nil, ErrNotLoggedIn
	}
	payload := map[string]string{"label": label}
	var resp DownloadRetrieveResponse
	if err := c.invoke(ctx, session, EndpointDownloadRetrieve, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// retryAfter extracts the provider backoff hint from a 429 response. Zero
// means no hint; the gate applies its default cooldown.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// Package supabase implements student.Store on a hosted Supabase table
// through its PostgREST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/music-school-hub/student-registry/internal/domain/shared"
	"github.com/music-school-hub/student-registry/internal/domain/student"
	"github.com/music-school-hub/student-registry/pkg/circuitbreaker"
	"github.com/music-school-hub/student-registry/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Supabase client.
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co
	URL string

	// AnonKey is sent both as apikey and as the bearer token.
	AnonKey string

	// Table is the PostgREST resource name.
	Table string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RequestsPerSecond limits outgoing requests; zero disables the limiter.
	RequestsPerSecond float64

	// Burst is the limiter bucket size.
	Burst int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(baseURL, anonKey string) Config {
	return Config{
		URL:               baseURL,
		AnonKey:           anonKey,
		Table:             "students",
		Timeout:           15 * time.Second,
		RequestsPerSecond: 10,
		Burst:             20,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client talks to the students table. It implements student.Store.
type Client struct {
	config     Config
	endpoint   string
	httpClient *http.Client
	logger     *logger.Logger
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) {
		if cb != nil {
			c.breaker = cb
		}
	}
}

// NewClient creates a client for the configured project.
func NewClient(config Config, opts ...Option) (*Client, error) {
	if config.URL == "" {
		return nil, errors.New("supabase: url is required")
	}
	if config.AnonKey == "" {
		return nil, errors.New("supabase: anon key is required")
	}
	if config.Table == "" {
		config.Table = "students"
	}

	c := &Client{
		config:     config,
		endpoint:   strings.TrimRight(config.URL, "/") + "/rest/v1/" + url.PathEscape(config.Table),
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.Nop(),
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	if config.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), max(config.Burst, 1))
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.breaker == nil {
		c.breaker = circuitbreaker.StoreBreaker(isBreakerFailure, func(name string, from, to circuitbreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}

	return c, nil
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// List fetches every row in the requested order.
func (c *Client) List(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("order", fmt.Sprintf("%s.%s", opts.Column(), strings.ToLower(opts.Direction())))

	var rows []StudentRow
	if err := c.doRequest(ctx, http.MethodGet, params, nil, &rows); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	return rowsToDomain(rows)
}

// Insert creates a row and returns it as stored.
func (c *Client) Insert(ctx context.Context, d student.Draft) (*student.Student, error) {
	if !d.SkillLevel.IsValid() {
		return nil, student.ErrInvalidSkillLevel
	}

	params := url.Values{}
	params.Set("select", "*")

	var rows []StudentRow
	body := []InsertRow{insertRowFromDraft(d)}
	if err := c.doRequest(ctx, http.MethodPost, params, body, &rows); err != nil {
		return nil, fmt.Errorf("insert student: %w", err)
	}

	return singleRow(rows)
}

// Update patches the row with the given id.
func (c *Client) Update(ctx context.Context, id string, patch student.Patch) (*student.Student, error) {
	if patch.IsEmpty() {
		return nil, student.ErrEmptyPatch
	}

	var rows []StudentRow
	if err := c.doRequest(ctx, http.MethodPatch, idFilter(id), patch, &rows); err != nil {
		return nil, fmt.Errorf("update student %s: %w", id, err)
	}

	return singleRow(rows)
}

// Delete removes the row with the given id.
func (c *Client) Delete(ctx context.Context, id string) error {
	var rows []StudentRow
	if err := c.doRequest(ctx, http.MethodDelete, idFilter(id), nil, &rows); err != nil {
		return fmt.Errorf("delete student %s: %w", id, err)
	}
	if len(rows) == 0 {
		return student.ErrStudentNotFound
	}
	return nil
}

// Ping issues a minimal read.
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("select", "id")
	params.Set("limit", "1")

	var rows []json.RawMessage
	return c.doRequest(ctx, http.MethodGet, params, nil, &rows)
}

func idFilter(id string) url.Values {
	params := url.Values{}
	params.Set("id", "eq."+id)
	params.Set("select", "*")
	return params
}

func singleRow(rows []StudentRow) (*student.Student, error) {
	switch len(rows) {
	case 0:
		return nil, student.ErrStudentNotFound
	case 1:
		return rows[0].ToDomain()
	default:
		return nil, shared.WrapError("student", "store", shared.ErrInvalidFormat,
			fmt.Sprintf("expected one row, got %d", len(rows)), shared.ErrStoreInvalidResponse)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest runs one request through the limiter and the circuit breaker.
// User actions are never retried.
func (c *Client) doRequest(ctx context.Context, method string, params url.Values, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRateLimited, err)
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.doSingleRequest(ctx, method, params, body, result)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return err
}

func (c *Client) doSingleRequest(ctx context.Context, method string, params url.Values, body, result any) error {
	fullURL := c.endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", c.config.AnonKey)
	req.Header.Set("Authorization", "Bearer "+c.config.AnonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return fmt.Errorf("%w: %v", shared.ErrStoreTimeout, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("postgrest request",
		logger.String("method", method),
		logger.Int("status", resp.StatusCode),
		logger.Latency(time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrStoreInvalidResponse, err)
		}
	}

	return nil
}

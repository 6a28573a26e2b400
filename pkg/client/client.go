// Package client provides the remote operation executor for the catalog
// service: one HTTP round trip per call, classified errors, no retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/catalog-client/pkg/logging"
)

// Prometheus metrics for catalog client operations.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog requests by operation and status",
	}, []string{"operation", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by operation",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})
)

// maxErrorBody bounds how much of a failed response body ends up in an error.
const maxErrorBody = 512

// Operation describes a remote operation.
type Operation struct {
	// Name is the operation name sent as operationName
	Name string

	// Document is the operation text
	Document string
}

// Response is the decoded payload of a successful operation.
type Response struct {
	Data       json.RawMessage
	StatusCode int
}

// Client executes remote operations against the catalog service.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog server (e.g., "http://localhost:4567")
	BaseURL string

	// Endpoint is the operation path appended to BaseURL
	Endpoint string

	// User-Agent header
	UserAgent string

	// Timeout bounds a single round trip
	Timeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		Endpoint:  "/api/graphql",
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = "/api/graphql"
	}

	logger := logging.NewLogger("catalog-client")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

type operationRequest struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type operationResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Execute performs one remote operation. Cancelling ctx aborts the round
// trip and yields a cancellation error.
func (c *Client) Execute(ctx context.Context, op Operation, variables map[string]any) (*Response, error) {
	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(op.Name).Observe(time.Since(startTime).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return nil, c.fail(op, "cancelled", NewCancellationError(err))
	}

	body, err := json.Marshal(operationRequest{
		OperationName: op.Name,
		Query:         op.Document,
		Variables:     variables,
	})
	if err != nil {
		return nil, fmt.Errorf("encode operation: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + c.config.Endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("operation", op.Name).
		Msg("Executing catalog operation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.fail(op, "cancelled", NewCancellationError(ctx.Err()))
		}
		return nil, c.fail(op, "network_error", &FetchError{
			Class:   ErrorClassNetwork,
			Message: "request failed",
			Err:     err,
		})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.fail(op, "cancelled", NewCancellationError(ctx.Err()))
		}
		return nil, c.fail(op, "network_error", &FetchError{
			Class:      ErrorClassNetwork,
			StatusCode: resp.StatusCode,
			Message:    "read response body",
			Err:        err,
		})
	}

	status := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode >= 400 {
		return nil, c.fail(op, status, &FetchError{
			Class:      ErrorClassUpstream,
			StatusCode: resp.StatusCode,
			Message:    truncate(strings.TrimSpace(string(data)), maxErrorBody),
		})
	}

	var decoded operationResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, c.fail(op, status, &FetchError{
			Class:      ErrorClassUpstream,
			StatusCode: resp.StatusCode,
			Message:    "malformed response",
			Err:        err,
		})
	}

	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			messages = append(messages, e.Message)
		}
		return nil, c.fail(op, "operation_error", &FetchError{
			Class:      ErrorClassUpstream,
			StatusCode: resp.StatusCode,
			Message:    strings.Join(messages, "; "),
		})
	}

	catalogRequestsTotal.WithLabelValues(op.Name, status).Inc()
	return &Response{Data: decoded.Data, StatusCode: resp.StatusCode}, nil
}

// fail records metrics and logs a classified failure.
func (c *Client) fail(op Operation, status string, err *FetchError) error {
	catalogRequestsTotal.WithLabelValues(op.Name, status).Inc()
	catalogErrorsTotal.WithLabelValues(string(err.Class)).Inc()

	event := c.logger.Warn()
	if err.Class == ErrorClassCancelled {
		event = c.logger.Debug()
	}
	event.
		Err(err).
		Str("operation", op.Name).
		Str("error_class", string(err.Class)).
		Int("status_code", err.StatusCode).
		Msg("Catalog operation failed")

	return err
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

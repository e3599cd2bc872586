// Package redaction talks to the external conversation analysis service. The
// service owns the redaction algorithm; this package owns surviving it:
// request-level retries with backoff, Retry-After handling, and the error
// taxonomy the job state machine acts on.
package redaction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/transcriptops/redactor/pkg/config"
	"github.com/transcriptops/redactor/pkg/logger"
	"github.com/transcriptops/redactor/pkg/models"
	"github.com/transcriptops/redactor/pkg/retrypolicy"
)

const (
	apiVersion = "2025-05-15-preview"
	submitPath = "language/analyze-conversations/jobs"

	// requestRetryBase is the first retry delay for a failed request.
	requestRetryBase = 500 * time.Millisecond
)

// OperationState is the lifecycle state a poll reports for an operation.
type OperationState int

const (
	OperationRunning OperationState = iota
	OperationSucceeded
	OperationFailed
)

// OperationStatus is the outcome of one poll.
type OperationStatus struct {
	State OperationState

	// WaitHint is the service-provided minimum wait before the next poll,
	// zero when the service gave none.
	WaitHint time.Duration

	// Detail carries the service error description when State is
	// OperationFailed.
	Detail string
}

// RedactedTurn is one redacted utterance, keyed by the wire id it was
// submitted under so it can be matched back to the source turn.
type RedactedTurn struct {
	ID   string
	Text string
}

// Client is the HTTP client for the redaction service. It is shared across
// all concurrent jobs; the pooled transport bounds idle connections.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	maxRetries int
	backoff    retrypolicy.Policy
	logger     logger.Logger
}

// NewClient creates a service client from the runner configuration.
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	return &Client{
		httpClient: createHTTPClient(cfg.HTTPTimeout),
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxHTTPRetries,
		backoff: retrypolicy.Policy{
			Base:   requestRetryBase,
			Factor: cfg.HTTPBackoffFactor,
			Max:    cfg.MaxPollInterval,
			Jitter: retrypolicy.DefaultJitterFraction,
		},
		logger: log,
	}
}

// Submit sends a document for redaction and returns the opaque operation
// handle to poll.
func (c *Client) Submit(ctx context.Context, doc *models.Document) (string, error) {
	payload, err := json.Marshal(buildSubmitRequest(doc))
	if err != nil {
		return "", fmt.Errorf("failed to encode submit payload for %s: %w", doc.ID, err)
	}

	url := fmt.Sprintf("%s%s?api-version=%s", c.endpoint, submitPath, apiVersion)
	resp, err := c.do(ctx, "submit", http.MethodPost, url, payload)
	if err != nil {
		return "", err
	}

	if resp.status != http.StatusAccepted {
		return "", &RequestError{
			Op:         "submit",
			StatusCode: resp.status,
			Err:        fmt.Errorf("expected 202 Accepted, got %d", resp.status),
		}
	}

	handle := resp.header.Get("Operation-Location")
	if handle == "" {
		return "", &RequestError{
			Op:         "submit",
			StatusCode: resp.status,
			Err:        errors.New("operation handle missing from response headers"),
		}
	}

	c.logger.DebugWithStage(logger.Submit, "Operation created for document %s", doc.ID)
	return handle, nil
}

// Poll reports the current state of an operation. A failed state is a
// service-side verdict, not a transport error, and comes back inside the
// status rather than as an error.
func (c *Client) Poll(ctx context.Context, handle string) (*OperationStatus, error) {
	resp, err := c.do(ctx, "poll", http.MethodGet, handle, nil)
	if err != nil {
		return nil, err
	}

	var body operationResponse
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, &RequestError{Op: "poll", StatusCode: resp.status, Err: fmt.Errorf("failed to decode poll response: %w", err)}
	}

	status := &OperationStatus{WaitHint: resp.retryAfter}
	switch body.Status {
	case "succeeded":
		status.State = OperationSucceeded
	case "failed", "cancelled":
		status.State = OperationFailed
		if body.Error != nil {
			status.Detail = body.Error.Message
		}
	default:
		// notStarted, running, or anything the service adds later
		status.State = OperationRunning
	}
	return status, nil
}

// FetchResult retrieves the redacted turns of a completed operation, in the
// order the service returned them.
func (c *Client) FetchResult(ctx context.Context, handle string) ([]RedactedTurn, error) {
	resp, err := c.do(ctx, "fetch", http.MethodGet, handle, nil)
	if err != nil {
		return nil, err
	}

	var body operationResponse
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, &RequestError{Op: "fetch", StatusCode: resp.status, Err: fmt.Errorf("failed to decode result payload: %w", err)}
	}

	if len(body.Tasks.Items) == 0 || len(body.Tasks.Items[0].Results.Conversations) == 0 {
		return nil, &ServiceLogicFailure{Handle: handle, Detail: "result payload has no conversation results"}
	}

	conv := body.Tasks.Items[0].Results.Conversations[0]
	turns := make([]RedactedTurn, 0, len(conv.Items))
	for _, item := range conv.Items {
		turns = append(turns, RedactedTurn{ID: item.ID, Text: item.RedactedContent.Text})
	}
	return turns, nil
}

// response is the subset of an HTTP response the callers need once the retry
// loop has accepted it.
type response struct {
	status     int
	header     http.Header
	body       []byte
	retryAfter time.Duration
}

// do runs one logical request with request-level retries. Connection
// failures, timeouts, 429 and 5xx are retried up to the configured cap with
// backoff, honoring Retry-After; other 4xx return immediately as permanent.
func (c *Client) do(ctx context.Context, op, method, url string, payload []byte) (*response, error) {
	var lastErr error
	var hint time.Duration

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			c.logger.Debug("Retrying %s request, attempt %d/%d", op, attempt, c.maxRetries)
			if err := sleepContext(ctx, c.backoff.Delay(attempt-1, hint)); err != nil {
				return nil, &RequestError{Op: op, Err: err}
			}
			hint = 0
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, &RequestError{Op: op, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &RequestError{Op: op, Err: ctx.Err()}
			}
			// Connection failure or timeout
			lastErr = &RequestError{Op: op, Transient: true, Err: err}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = &RequestError{Op: op, StatusCode: resp.StatusCode, Transient: true, Err: readErr}
			continue
		}

		if transientStatus(resp.StatusCode) {
			lastErr = &RequestError{
				Op:         op,
				StatusCode: resp.StatusCode,
				Transient:  true,
				Err:        fmt.Errorf("transient status %d: %s", resp.StatusCode, truncate(body)),
			}
			hint = retryAfterHint(resp.Header)
			continue
		}

		if resp.StatusCode >= 400 {
			return nil, &RequestError{
				Op:         op,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("permanent status %d: %s", resp.StatusCode, truncate(body)),
			}
		}

		return &response{
			status:     resp.StatusCode,
			header:     resp.Header,
			body:       body,
			retryAfter: retryAfterHint(resp.Header),
		}, nil
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", op, c.maxRetries, lastErr)
}

// retryAfterHint reads a Retry-After header given in seconds.
func retryAfterHint(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// sleepContext waits for the duration or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// truncate keeps error messages readable when the service returns a page of
// HTML or a large error body.
func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Package modelapi is the HTTP client for external prediction endpoints.
package modelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for model endpoint failures.
var (
	ErrModelUnreachable = errors.New("model endpoint unreachable")
	ErrModelError       = errors.New("model endpoint error")
	ErrModelTimeout     = errors.New("model execution timeout")
)

// Client is the interface for invoking a prediction model.
type Client interface {
	Execute(ctx context.Context, endpoint string, req ExecuteRequest) (json.RawMessage, error)
}

// ExecuteRequest defines parameters for one model execution.
type ExecuteRequest struct {
	Params        json.RawMessage `json:"params"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
}

// HTTPClient implements Client against the model endpoints' HTTP API.
// The http.Client timeout is a transport-level floor; callers bound the
// overall execution with ctx.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a new model endpoint client.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Execute POSTs the request to <endpoint>/execute and returns the raw
// serialized result payload.
func (c *HTTPClient) Execute(ctx context.Context, endpoint string, req ExecuteRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal execute request: %w", err)
	}

	u := fmt.Sprintf("%s/execute", endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Correlation-ID", req.CorrelationID.String())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrModelError, resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading model response: %w", err)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrModelError)
	}

	return json.RawMessage(payload), nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrModelTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrModelTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrModelUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrModelUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

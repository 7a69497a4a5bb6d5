package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/services"
)

// HTTPDoer describes the HTTP client used by the backend client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer token attached to authenticated requests.
// An empty token sends the request without an Authorization header.
type TokenSource interface {
	AccessToken() (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

func (t StaticToken) AccessToken() (string, error) { return string(t), nil }

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 64 << 10

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Unwrap exposes the sentinel markers matching the status code.
func (e *APIError) Unwrap() []error {
	switch e.Status {
	case http.StatusUnauthorized:
		return []error{services.ErrRejected, services.ErrUnauthorized}
	case http.StatusNotFound:
		return []error{services.ErrRejected, services.ErrNotFound}
	default:
		return []error{services.ErrRejected}
	}
}

// Client talks to the field operations REST API.
type Client struct {
	baseURL string
	http    HTTPDoer
	tokens  TokenSource
	now     func() time.Time
}

// New constructs a client. A nil doer uses http.DefaultClient and a nil token
// source sends unauthenticated requests.
func New(baseURL string, doer HTTPDoer, tokens TokenSource) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    doer,
		tokens:  tokens,
		now:     time.Now,
	}
}

// NewFromConfig builds a client using api.base_url and api.request_timeout.
func NewFromConfig(cfg *config.Config, tokens TokenSource) *Client {
	return New(cfg.API.BaseURL, &http.Client{Timeout: cfg.RequestTimeout()}, tokens)
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(ctx, req, out)
}

func (c *Client) send(ctx context.Context, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.AccessToken()
		if err != nil {
			return fmt.Errorf("load access token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	operation := req.Method + " " + req.URL.Path
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", operation, ctxErr)
		}
		return services.Wrap(services.ErrTransport, "backend", operation, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// decodeAPIError prefers the JSON "message" field and falls back to the
// status text.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if json.Unmarshal(data, &payload) != nil || len(payload.Message) == 0 {
		return apiErr
	}
	var single string
	if json.Unmarshal(payload.Message, &single) == nil && strings.TrimSpace(single) != "" {
		apiErr.Message = single
		return apiErr
	}
	// Validation errors frequently arrive as a list of messages.
	var many []string
	if json.Unmarshal(payload.Message, &many) == nil && len(many) > 0 {
		apiErr.Message = strings.Join(many, "; ")
	}
	return apiErr
}

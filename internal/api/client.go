// Package api is the client for the remote application API: token
// authentication, applications, groups, and per-application snapshots.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrUnauthorized is returned when a call still gets a 401 after the
	// single re-authentication retry.
	ErrUnauthorized = errors.New("unauthorized after re-authentication")

	// ErrOperationLimit is the server's snapshot rate-limit rejection. The
	// orchestrator waits and retries on it; everything else is terminal for
	// the current application.
	ErrOperationLimit = errors.New("snapshot operation limit exceeded")
)

const operationLimitTag = "ERROR_SNAPSHOT_OPERATION_LIMIT_EXCEEDED"

// APIError is a non-2xx response. Code is the error tag from the JSON body,
// when the server sent one.
type APIError struct {
	Status int
	Code   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: status %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// Client talks to the remote API. A token is acquired lazily and reused
// until a call reports 401; validity is discovered reactively, the token
// carries no inspectable expiry.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	token   string
	log     zerolog.Logger
}

func NewClient(baseURL string, creds Credentials, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		creds:   creds,
		log:     log,
	}
}

// Authenticate performs a fresh credential exchange and replaces the held
// token. Every call exchanges credentials again; callers reuse the session
// until a request reports unauthorized. A non-success status is fatal for
// the running operation.
func (c *Client) Authenticate(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{
		"email":    c.creds.Email,
		"password": c.creds.Password,
	})
	if err != nil {
		return fmt.Errorf("marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/user/token-auth/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token exchange rejected: %w", apiErrorFrom(resp))
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	if body.AccessToken == "" {
		return errors.New("token exchange returned an empty token")
	}
	c.token = body.AccessToken
	c.log.Debug().Msg("authenticated")
	return nil
}

// do performs an authenticated JSON request. On a 401 it re-authenticates
// once and retries the call once; a second 401 surfaces ErrUnauthorized.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	if c.token == "" {
		if err := c.Authenticate(ctx); err != nil {
			return err
		}
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, path, payload)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusUnauthorized {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if attempt > 0 {
				return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
			}
			c.log.Debug().Str("path", path).Msg("401, re-authenticating")
			if err := c.Authenticate(ctx); err != nil {
				return err
			}
			continue
		}

		return consume(resp, method, path, out)
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func consume(resp *http.Response, method, path string, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := apiErrorFrom(resp)
		if apiErr.Code == operationLimitTag {
			return fmt.Errorf("%s %s: %w", method, path, ErrOperationLimit)
		}
		return fmt.Errorf("%s %s: %w", method, path, apiErr)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func apiErrorFrom(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Code = body.Error
		apiErr.Detail = body.Detail
	}
	return apiErr
}

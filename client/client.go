// Package client provides a Go client for a remote certflow server.
//
// Usage:
//
//	c := client.New("https://certflow.example.com")
//
//	inst, err := c.Start(ctx, "learner-1", "AWS-SAA", nil)
//	// learner completes the form...
//	inst, err = c.Resume(ctx, inst.ID, "results/abc123")
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/id"
	"github.com/certvine/certflow/instance"
)

// Client talks to a certflow server over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start creates a new workflow instance. params are optional free-form
// request parameters forwarded to the assessment generator.
func (c *Client) Start(ctx context.Context, ownerRef, certificationRef string, params map[string]string) (*instance.Instance, error) {
	body := map[string]any{
		"owner_ref":         ownerRef,
		"certification_ref": certificationRef,
	}
	if len(params) > 0 {
		body["request_parameters"] = params
	}
	var inst instance.Instance
	if err := c.do(ctx, http.MethodPost, "/api/v1/workflows", body, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// Get returns the full durable record of one instance.
func (c *Client) Get(ctx context.Context, instID id.InstanceID) (*instance.Instance, error) {
	var inst instance.Instance
	if err := c.do(ctx, http.MethodGet, "/api/v1/workflows/"+instID.String(), nil, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// List returns instances matching opts.
func (c *Client) List(ctx context.Context, opts instance.ListOpts) ([]*instance.Instance, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/api/v1/workflows"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var instances []*instance.Instance
	if err := c.do(ctx, http.MethodGet, path, nil, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

// Resume supplies the external results reference to a suspended
// instance.
func (c *Client) Resume(ctx context.Context, instID id.InstanceID, externalRef string) (*instance.Instance, error) {
	body := map[string]string{"external_ref": externalRef}
	var inst instance.Instance
	if err := c.do(ctx, http.MethodPost, "/api/v1/workflows/"+instID.String()+"/resume", body, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// Advance re-drives an active instance.
func (c *Client) Advance(ctx context.Context, instID id.InstanceID) (*instance.Instance, error) {
	var inst instance.Instance
	if err := c.do(ctx, http.MethodPost, "/api/v1/workflows/"+instID.String()+"/advance", nil, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// do executes one request and decodes the response. Error responses are
// mapped back onto the engine's sentinel errors by status code.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("certflow/client: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("certflow/client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("certflow/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("certflow/client: decode response: %w", err)
		}
	}
	return nil
}

// apiError is the server's JSON error body.
type apiError struct {
	Message struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	} `json:"message"`
}

func (c *Client) decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	msg := strings.TrimSpace(string(data))
	var decoded apiError
	if json.Unmarshal(data, &decoded) == nil && decoded.Message.Error != "" {
		msg = decoded.Message.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("certflow/client: %s: %w", msg, certflow.ErrInstanceNotFound)
	case http.StatusConflict:
		switch certflow.Kind(decoded.Message.Kind) {
		case certflow.KindInvalidResume:
			return certflow.InvalidResume("client", fmt.Errorf("%s", msg))
		default:
			return certflow.PreconditionFailed("client", fmt.Errorf("%s", msg))
		}
	default:
		return fmt.Errorf("certflow/client: server returned %d: %s", resp.StatusCode, msg)
	}
}

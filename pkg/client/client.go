// Package client is an HTTP client for a conversion service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// StatusError is returned for non-success responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Client is an HTTP client for triggering derived file generation
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new conversion client
func New(baseURL string) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{
		Timeout: 30 * time.Second,
	})
}

// NewWithHTTPClient creates a new conversion client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CreateDerivedFiles runs the synchronous conversions of the media and
// queues the rest
func (c *Client) CreateDerivedFiles(ctx context.Context, media pipeline.Media) (*pipeline.DerivedFilesResponse, error) {
	var resp pipeline.DerivedFilesResponse
	if err := c.do(ctx, http.MethodPost, "/v1/derived", media, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExecuteJob runs a conversion job on the server and waits for it
func (c *Client) ExecuteJob(ctx context.Context, job pipeline.ConversionJob) (*pipeline.DerivedFilesResponse, error) {
	var resp pipeline.DerivedFilesResponse
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", job, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobStatus returns the state of a queued job. Unknown jobs return an error
// wrapping pipeline.ErrJobNotFound.
func (c *Client) JobStatus(ctx context.Context, id string) (*pipeline.JobStatus, error) {
	var status pipeline.JobStatus
	err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(id), nil, &status)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Conversions lists the conversions applied to a collection, or every
// conversion when collection is empty
func (c *Client) Conversions(ctx context.Context, collection string) ([]pipeline.ConversionSpec, error) {
	path := "/v1/conversions"
	if collection != "" {
		path += "?collection=" + url.QueryEscape(collection)
	}
	var specs []pipeline.ConversionSpec
	if err := c.do(ctx, http.MethodGet, path, nil, &specs); err != nil {
		return nil, err
	}
	return specs, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

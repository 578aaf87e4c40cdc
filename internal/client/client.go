// Package client is a Go client for the CPM registry HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/chungindustries/cpm-registry/internal/domain/registry"
	"github.com/chungindustries/cpm-registry/internal/infrastructure/tracing"
)

// DefaultBaseURL is the public registry.
const DefaultBaseURL = "https://registry.cpm.chungindustries.com"

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryConfig retries connection failures and 5xx responses three times.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		MinWait:    200 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Retry     RetryConfig
}

// DefaultConfig returns the configuration for the public registry.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Timeout:   60 * time.Second,
		UserAgent: "cpm-registry-client/1.0",
		Retry:     DefaultRetryConfig(),
	}
}

// APIError is a non-success response from the registry.
type APIError struct {
	StatusCode int
	// Status is the JSend status, "fail" or "error", when the body had one.
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry responded %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the registry.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (e *envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	var data struct {
		Message string `json:"message"`
	}
	if len(e.Data) > 0 && sonic.Unmarshal(e.Data, &data) == nil {
		return data.Message
	}
	return ""
}

// Client talks to one registry.
type Client struct {
	resty *resty.Client
}

// New creates a client. Requests go through a retrying transport; the last
// response is returned once retries are exhausted so error envelopes survive.
func New(cfg Config) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retry.MaxRetries
	retryClient.RetryWaitMin = cfg.Retry.MinWait
	retryClient.RetryWaitMax = cfg.Retry.MaxWait
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	r := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")
	r.JSONMarshal = sonic.Marshal
	r.JSONUnmarshal = sonic.Unmarshal

	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		headers := make(map[string]string, 2)
		tracing.InjectTraceContext(req.Context(), headers)
		req.SetHeaders(headers)
		return nil
	})

	return &Client{resty: r}
}

// do executes a JSON request and decodes the success data into out.
func (c *Client) do(req *resty.Request, method, path string, out any) error {
	var env envelope
	resp, err := req.SetResult(&env).SetError(&env).Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), &env)
	}
	if env.Status != "success" {
		return fmt.Errorf("%s %s: unexpected response status %q", method, path, env.Status)
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

func apiError(code int, env *envelope) *APIError {
	msg := env.message()
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &APIError{StatusCode: code, Status: env.Status, Message: msg}
}

// List returns every package in the registry.
func (c *Client) List(ctx context.Context) ([]*registry.Package, error) {
	var out struct {
		Packages []*registry.Package `json:"packages"`
	}
	if err := c.do(c.resty.R().SetContext(ctx), http.MethodGet, "/packages", &out); err != nil {
		return nil, err
	}
	return out.Packages, nil
}

// Get returns one package with all of its versions.
func (c *Client) Get(ctx context.Context, name string) (*registry.Package, error) {
	var pkg registry.Package
	req := c.resty.R().SetContext(ctx).SetPathParam("name", name)
	if err := c.do(req, http.MethodGet, "/packages/{name}", &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// GetVersion returns one version entry.
func (c *Client) GetVersion(ctx context.Context, name, version string) (*registry.PackageVersion, error) {
	var entry registry.PackageVersion
	req := c.resty.R().SetContext(ctx).SetPathParams(map[string]string{
		"name":    name,
		"version": version,
	})
	if err := c.do(req, http.MethodGet, "/packages/{name}/{version}", &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Publish uploads a version and returns the resulting package.
func (c *Client) Publish(ctx context.Context, meta registry.Metadata, tarball []byte) (*registry.Package, error) {
	metaJSON, err := sonic.MarshalString(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	req := c.resty.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{"meta": metaJSON}).
		SetMultipartField("tarball", registry.TarballFilename(meta.Name, meta.Version), "application/gzip", bytes.NewReader(tarball))

	var pkg registry.Package
	if err := c.do(req, http.MethodPost, "/packages", &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// Download streams the tarball of a published version into w.
func (c *Client) Download(ctx context.Context, name, version string, w io.Writer) (int64, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "*/*").
		SetPathParams(map[string]string{"name": name, "version": version}).
		Get("/packages/{name}/{version}/dist/tarball")
	if err != nil {
		return 0, fmt.Errorf("download %s@%s: %w", name, version, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		var env envelope
		data, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		_ = sonic.Unmarshal(data, &env)
		return 0, apiError(resp.StatusCode(), &env)
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("download %s@%s: %w", name, version, err)
	}
	return n, nil
}

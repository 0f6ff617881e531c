// Package couchdb implements the HTTP transport to a CouchDB compatible document store.
package couchdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ubuntu/decorate"
	"github.com/ubuntu/docsync/internal/constants"
)

var (
	// ErrNetwork is returned when the document store could not be reached or did not answer in time.
	ErrNetwork = errors.New("network failure")
	// ErrInvalidConfig is returned when the transport configuration is invalid.
	ErrInvalidConfig = errors.New("invalid document store configuration")
	// ErrUnexpectedStatus is returned by Ping when the document store answers with a non 2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// RequestIDHeader is the header carrying the identifier of each request.
const RequestIDHeader = "X-Request-Id"

// Config is the address of the document store.
type Config struct {
	Host string
	Port int
}

// URL returns the base URL of the document store.
func (c Config) URL() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d is out of range", ErrInvalidConfig, c.Port)
	}
	return nil
}

// Response is the answer of the document store to a request.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK returns true if the status code is in the 2xx range.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ServerInfo is the welcome document served at the root of the store.
type ServerInfo struct {
	Vendor  string `json:"couchdb"`
	Version string `json:"version"`
}

// Client sends documents to a document store. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

type options struct {
	responseTimeout time.Duration
	logger          *slog.Logger

	// Private members exported for tests.
	roundTripper http.RoundTripper
}

// Options represents an optional function to override Client default values.
type Options func(*options)

// WithResponseTimeout sets how long to wait for the document store to answer a request.
// A zero duration waits forever.
func WithResponseTimeout(d time.Duration) Options {
	return func(o *options) {
		o.responseTimeout = d
	}
}

// WithLogger sets the logger used by the client.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.logger = l
	}
}

// New returns a new Client for the document store at cfg.
func New(cfg Config, args ...Options) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := options{
		responseTimeout: constants.DefaultResponseTimeout,
		logger:          slog.Default(),
		roundTripper:    http.DefaultTransport,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Client{
		baseURL: cfg.URL(),
		http: &http.Client{
			Timeout:   opts.responseTimeout,
			Transport: opts.roundTripper,
		},
		log: opts.logger,
	}, nil
}

// Put sends payload with a PUT request to the escaped path.
func (c *Client) Put(ctx context.Context, path string, payload []byte) (Response, error) {
	return c.do(ctx, http.MethodPut, path, payload)
}

// Post sends payload with a POST request to the escaped path.
func (c *Client) Post(ctx context.Context, path string, payload []byte) (Response, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

// Ping checks that the document store is reachable and returns its welcome document.
func (c *Client) Ping(ctx context.Context) (info ServerInfo, err error) {
	defer decorate.OnError(&err, "could not ping document store at %s", c.baseURL)

	resp, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return ServerInfo{}, err
	}
	if !resp.OK() {
		return ServerInfo{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return ServerInfo{}, fmt.Errorf("invalid welcome document: %v", err)
	}
	return info, nil
}

// do performs a single request. Any answer from the store, whatever its status, is a Response.
// Failing to get an answer is an error wrapping ErrNetwork.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %v", err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.log.With("request_id", reqID, "method", method, "path", path)
	log.Debug("Sending request to document store", "bytes", len(payload))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug("Request failed", "error", err)
		return Response{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: failed to read response body: %w", ErrNetwork, err)
	}

	log.Debug("Received response from document store", "status", resp.StatusCode, "duration", time.Since(start))
	return Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// Package transport provides the bearer-authenticated GraphQL and REST clients
// the probes talk to the CRM through.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/PentesterFlow/crmprobe/internal/errors"
	"github.com/PentesterFlow/crmprobe/internal/logger"
	"github.com/PentesterFlow/crmprobe/internal/metrics"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 5 * 1024 * 1024

// REST issues calls against the REST surface. Paths are relative to the base URL.
type REST interface {
	Do(ctx context.Context, method, path string, body interface{}) (*Response, error)
}

// GraphQL issues documents against the GraphQL endpoint. A response carrying
// an errors array is returned as an error; otherwise data is decoded into out
// when out is non-nil.
type GraphQL interface {
	Request(ctx context.Context, document string, variables map[string]interface{}, out interface{}) error
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// JSON decodes the body into v.
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Config holds configuration for the CRM client.
type Config struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxConnsPerHost int
	UserAgent       string
	SkipTLSVerify   bool
}

// DefaultConfig returns defaults matching the CRM's documented client settings.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxConnsPerHost: 10,
		UserAgent:       "crmprobe/1.0",
	}
}

// Client talks to both API surfaces of one CRM instance. It implements REST
// and GraphQL and is safe for concurrent use.
type Client struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	userAgent string
	metrics   *metrics.Collector
	log       *logger.Logger
}

// New creates a client for cfg. A nil collector or logger disables that concern.
func New(cfg Config, m *metrics.Collector, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transport: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = DefaultConfig().MaxConnsPerHost
	}
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logger.Nop()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("transport: configure http2: %w", err)
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		metrics:   m,
		log:       log.WithComponent("transport"),
	}, nil
}

// Do performs a REST call. A non-2xx answer yields both the response and a
// categorized error carrying the status code.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, errors.NewProbeError(errors.Parse, path, "encode", "encoding request body failed", err)
		}
	}

	resp, err := c.send(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	if statusErr := errors.CategorizeHTTPStatus(resp.StatusCode, c.baseURL+path, errorDetail(resp)); statusErr != nil {
		c.metrics.RecordError(statusErr.Type)
		return resp, statusErr
	}
	return resp, nil
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// Request posts document to {base}/graphql.
func (c *Client) Request(ctx context.Context, document string, variables map[string]interface{}, out interface{}) error {
	endpoint := c.baseURL + "/graphql"

	payload, err := json.Marshal(graphqlRequest{Query: document, Variables: variables})
	if err != nil {
		return errors.NewProbeError(errors.Parse, endpoint, "encode", "encoding GraphQL request failed", err)
	}

	resp, err := c.send(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return err
	}

	var gr graphqlResponse
	decodeErr := json.Unmarshal(resp.Body, &gr)

	if decodeErr == nil && len(gr.Errors) > 0 {
		msgs := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			msgs = append(msgs, e.Message)
		}
		gqlErr := errors.NewGraphQLError(endpoint, "graphql", strings.Join(msgs, "; "))
		if statusErr := errors.CategorizeHTTPStatus(resp.StatusCode, endpoint, gqlErr.Message); statusErr != nil {
			c.metrics.RecordError(statusErr.Type)
			return statusErr
		}
		c.metrics.RecordError(errors.GraphQL)
		return gqlErr
	}

	if statusErr := errors.CategorizeHTTPStatus(resp.StatusCode, endpoint, errorDetail(resp)); statusErr != nil {
		c.metrics.RecordError(statusErr.Type)
		return statusErr
	}

	if decodeErr != nil {
		c.metrics.RecordError(errors.Parse)
		return errors.NewParseError(endpoint, "graphql", decodeErr)
	}

	if out != nil && len(gr.Data) > 0 {
		if err := json.Unmarshal(gr.Data, out); err != nil {
			c.metrics.RecordError(errors.Parse)
			return errors.NewParseError(endpoint, "graphql", err)
		}
	}
	return nil
}

// send performs one instrumented round trip and reads the body.
func (c *Client) send(ctx context.Context, method, url string, payload []byte) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.NewProbeError(errors.Parse, url, "request_creation", "failed to create request", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.metrics.RecordRequest()
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		probeErr := errors.Categorize(err, url)
		c.metrics.RecordError(probeErr.Type)
		c.log.WithError(err).Debugf("%s %s failed", method, url)
		return nil, probeErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	duration := time.Since(start)
	if err != nil {
		probeErr := errors.NewNetworkError(url, "body_read", err)
		c.metrics.RecordError(probeErr.Type)
		return nil, probeErr
	}

	c.metrics.RecordResponseTime(duration)
	c.metrics.RecordStatusCode(resp.StatusCode)
	c.metrics.RecordBytes(int64(len(body)))
	c.log.RequestEvent(method, url, resp.StatusCode, duration)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   duration,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

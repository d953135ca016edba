package transport

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

	"github.com/docker/go-connections/tlsconfig"
	"github.com/op/go-logging"
	"github.com/rcrowley/go-metrics"
)

var log = logging.MustGetLogger("kvconsole.transport")

const DefaultTimeout = 10 * time.Second

var (
	ErrInvalidBaseURL = errors.New("invalid base URL")
	ErrEncodeBody     = errors.New("failed to encode request body")
	ErrReadBody       = errors.New("failed to read response body")
)

// TLSConfig points at the PEM files used to reach an https backend. All
// fields are optional; the zero value keeps the system defaults.
type TLSConfig struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	InsecureSkipVerify bool
}

func (t TLSConfig) enabled() bool {
	return t.CAFile != "" || t.CertFile != "" || t.KeyFile != "" || t.InsecureSkipVerify
}

type Config struct {
	BaseURL string
	// Timeout bounds a whole call, including reading the body. Zero means
	// DefaultTimeout.
	Timeout time.Duration
	TLS     TLSConfig
	// Registry receives call timers; nil uses metrics.DefaultRegistry.
	Registry metrics.Registry
}

// RequestInterceptor may inspect or decorate a request before it is sent.
// Returning an error aborts the call.
type RequestInterceptor func(*http.Request) error

// ResponseInterceptor observes every response, successful or not, before
// the status is checked. The body has already been buffered and may be
// read again.
type ResponseInterceptor func(*http.Response) error

type Request struct {
	Method string
	// Path is appended to the base URL and must already be escaped.
	Path  string
	Query url.Values
	// Body is encoded as JSON when non-nil.
	Body any
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is the single configured HTTP client every data-access call goes
// through.
type Client struct {
	base     *url.URL
	timeout  time.Duration
	http     *http.Client
	registry metrics.Registry

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Registry == nil {
		cfg.Registry = metrics.DefaultRegistry
	}

	hc, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		base:     base,
		timeout:  cfg.Timeout,
		http:     hc,
		registry: cfg.Registry,
	}

	c.WithRequestInterceptor(TagRequestID)
	c.WithResponseInterceptor(LogUnauthorized)

	return c, nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.TLS.enabled() {
		tc, err := tlsconfig.Client(tlsconfig.Options{
			CAFile:             cfg.TLS.CAFile,
			CertFile:           cfg.TLS.CertFile,
			KeyFile:            cfg.TLS.KeyFile,
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		})
		if err != nil {
			return nil, fmt.Errorf("tls config: %w", err)
		}
		tr.TLSClientConfig = tc
	}

	return &http.Client{Timeout: cfg.Timeout, Transport: tr}, nil
}

// WithRequestInterceptor appends fn to the request chain, after the request
// id tag. BearerToken is the usual addition.
func (c *Client) WithRequestInterceptor(fn RequestInterceptor) *Client {
	c.requestInterceptors = append(c.requestInterceptors, fn)
	return c
}

func (c *Client) WithResponseInterceptor(fn ResponseInterceptor) *Client {
	c.responseInterceptors = append(c.responseInterceptors, fn)
	return c
}

func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Do sends r and returns the buffered response. Any status outside 2xx is
// returned as a *StatusError. Nothing is retried.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	target, err := c.resolve(r)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if r.Body != nil {
		buf, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeBody, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/plain")

	for _, fn := range c.requestInterceptors {
		if err := fn(req); err != nil {
			return nil, fmt.Errorf("%s %s: request interceptor: %w", r.Method, r.Path, err)
		}
	}

	timer := metrics.GetOrRegisterTimer("transport."+r.Method, c.registry)
	start := time.Now()
	resp, err := c.http.Do(req)
	timer.UpdateSince(start)
	if err != nil {
		c.failed()
		return nil, fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.failed()
		return nil, fmt.Errorf("%s %s: %w: %v", r.Method, r.Path, ErrReadBody, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))

	for _, fn := range c.responseInterceptors {
		if err := fn(resp); err != nil {
			return nil, fmt.Errorf("%s %s: response interceptor: %w", r.Method, r.Path, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.failed()
		return nil, &StatusError{
			Method: r.Method,
			Path:   r.Path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) resolve(r Request) (string, error) {
	if !strings.HasPrefix(r.Path, "/") {
		return "", fmt.Errorf("path %q must start with /", r.Path)
	}

	u, err := url.Parse(strings.TrimRight(c.base.String(), "/") + r.Path)
	if err != nil {
		return "", fmt.Errorf("path %q: %w", r.Path, err)
	}
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	return u.String(), nil
}

func (c *Client) failed() {
	metrics.GetOrRegisterCounter("transport.failures", c.registry).Inc(1)
}

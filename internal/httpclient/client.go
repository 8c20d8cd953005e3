package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/datallboy/gofetch/internal/domain"
)

// DefaultUserAgent mimics a desktop browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/69.0.3497.100 Safari/537.36"

// Status errors. All of them are wrapped as negotiation failures.
var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrServerError  = errors.New("http: server error")
)

// Options configures the HTTP client.
type Options struct {
	// Timeout bounds connecting, the TLS handshake and waiting for response
	// headers. It does not limit how long the body may stream.
	// Default: 30s
	Timeout time.Duration

	// UserAgent is sent with every request.
	// Default: DefaultUserAgent
	UserAgent string

	// MinTLSVersion is the lowest TLS version accepted for https.
	// Default: tls.VersionTLS12
	MinTLSVersion uint16

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 4
	MaxIdleConnsPerHost int

	// Transport replaces the built transport entirely. Used in tests.
	Transport http.RoundTripper
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:             30 * time.Second,
		UserAgent:           DefaultUserAgent,
		MinTLSVersion:       tls.VersionTLS12,
		MaxIdleConnsPerHost: 4,
	}
}

// Response is a negotiated GET response.
type Response struct {
	Body io.ReadCloser

	// ContentLength of Body, -1 if unknown.
	ContentLength int64

	// TotalSize of the whole resource, -1 if unknown.
	TotalSize int64

	// FinalURL is the URL after redirects.
	FinalURL *url.URL

	// Partial is true when the server honored the requested offset and
	// Body starts at StartOffset.
	Partial     bool
	StartOffset int64
}

// Client is an HTTP client for one-shot large downloads.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.MinTLSVersion == 0 {
		opts.MinTLSVersion = def.MinTLSVersion
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:       &tls.Config{MinVersion: opts.MinTLSVersion},
			TLSHandshakeTimeout:   opts.Timeout,
			ResponseHeaderTimeout: opts.Timeout,
			MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
			IdleConnTimeout:       90 * time.Second,
			DisableCompression:    true, // byte counts must match what lands on disk
		}
	}

	return &Client{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

// ParseURL validates rawURL as an absolute http or https URL.
func ParseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.NewError(domain.KindNegotiation, "parse url", fmt.Errorf("%w: %v", domain.ErrInvalidURL, err))
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return nil, domain.NewError(domain.KindNegotiation, "parse url", fmt.Errorf("%w: %q is not absolute", domain.ErrInvalidURL, rawURL))
	default:
		return nil, domain.NewError(domain.KindNegotiation, "parse url", fmt.Errorf("%w: %s", domain.ErrUnsupportedScheme, u.Scheme))
	}
	if u.Host == "" {
		return nil, domain.NewError(domain.KindNegotiation, "parse url", fmt.Errorf("%w: missing host", domain.ErrInvalidURL))
	}
	return u, nil
}

// Get requests rawURL. When offset > 0 it asks for the remainder of the
// resource; if the server cannot serve that exact range it falls back to a
// plain GET and the returned Response has Partial == false.
func (c *Client) Get(ctx context.Context, rawURL string, offset int64) (*Response, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, u, offset)
	if err != nil {
		return nil, err
	}

	if offset <= 0 {
		return c.negotiate(resp, 0)
	}

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		resp.Body.Close()
		return c.retryWithoutRange(ctx, u)
	}

	r, err := c.negotiate(resp, offset)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusPartialContent && !r.Partial {
		// 206 for some other range is useless for an append
		r.Body.Close()
		return c.retryWithoutRange(ctx, u)
	}
	return r, nil
}

func (c *Client) retryWithoutRange(ctx context.Context, u *url.URL) (*Response, error) {
	resp, err := c.do(ctx, u, 0)
	if err != nil {
		return nil, err
	}
	return c.negotiate(resp, 0)
}

func (c *Client) do(ctx context.Context, u *url.URL, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, domain.NewError(domain.KindNegotiation, "create request", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewError(domain.KindTransport, "send request", ctx.Err())
		}
		return nil, domain.NewError(domain.KindTransport, "send request", err)
	}
	if resp == nil || resp.Body == nil {
		return nil, domain.NewError(domain.KindNegotiation, "read response", domain.ErrEmptyResponse)
	}
	return resp, nil
}

// negotiate turns a raw response into a Response or a negotiation error.
func (c *Client) negotiate(resp *http.Response, offset int64) (*Response, error) {
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil, domain.NewError(domain.KindNegotiation, "read response", domain.ErrEmptyResponse)
	}
	if err := checkStatusCode(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, domain.NewError(domain.KindNegotiation, "read response", fmt.Errorf("%w (%s)", err, resp.Status))
	}

	r := &Response{
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		TotalSize:     resp.ContentLength,
		FinalURL:      resp.Request.URL,
	}

	if resp.StatusCode == http.StatusPartialContent {
		start, _, total, err := ParseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			resp.Body.Close()
			return nil, domain.NewError(domain.KindNegotiation, "read response", err)
		}
		r.StartOffset = start
		r.Partial = offset > 0 && start == offset
		r.TotalSize = total
		if total < 0 && resp.ContentLength >= 0 {
			r.TotalSize = start + resp.ContentLength
		}
	}

	return r, nil
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return ErrServerError
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}

// ParseContentRange parses a Content-Range header value.
// Returns start, end, total bytes. Total may be -1 if unknown.
func ParseContentRange(header string) (start, end, total int64, err error) {
	// Format: bytes start-end/total or bytes start-end/*
	header = strings.TrimPrefix(header, "bytes ")
	parts := strings.Split(header, "/")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	rangeParts := strings.Split(parts[0], "-")
	if len(rangeParts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	start, err = strconv.ParseInt(rangeParts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}

	end, err = strconv.ParseInt(rangeParts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}

	if parts[1] == "*" {
		total = -1
	} else {
		total, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
		}
	}

	return start, end, total, nil
}

// ParseTLSVersion maps "1.0".."1.3" to the crypto/tls constant.
func ParseTLSVersion(v string) (uint16, error) {
	switch strings.TrimSpace(v) {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	case "1.1":
		return tls.VersionTLS11, nil
	case "1.0":
		return tls.VersionTLS10, nil
	default:
		return 0, fmt.Errorf("unsupported tls version %q", v)
	}
}

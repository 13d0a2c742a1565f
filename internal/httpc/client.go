// Package httpc provides HTTP clients with sensible defaults.
// Use this instead of http.DefaultClient to ensure timeouts are set.
package httpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	DefaultPingTimeout     = 5 * time.Second
)

// NewClient creates a new HTTP client with the specified overall timeout.
// A zero timeout leaves the request bounded only by its context, which
// streaming callers rely on.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(),
	}
}

// NewTransport returns a transport with bounded dial, TLS and idle timeouts.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// PingError reports that a service did not answer a connectivity check.
type PingError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *PingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ping %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("ping %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *PingError) Unwrap() error {
	return e.Err
}

// Ping issues a GET against url and reports whether the service answered.
// Any status below 500 counts as reachable; only transport errors and
// server errors fail the check.
func Ping(ctx context.Context, client *http.Client, url string) error {
	if client == nil {
		client = NewClient(DefaultPingTimeout)
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &PingError{URL: url, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return &PingError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 500 {
		return &PingError{URL: url, StatusCode: resp.StatusCode}
	}
	return nil
}

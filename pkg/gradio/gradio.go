// Package gradio is a minimal client for calling named endpoints of a
// Gradio app, such as Applio's TTS and voice conversion scripts.
//
// Two transports are supported. Gradio 4 and later expose
// POST /call/{api} followed by an SSE stream of the result; Gradio 3 apps
// queue jobs over the /queue/join websocket. With ProtocolAuto the client
// reads the app's /config once and picks the right one.
//
//	c, _ := gradio.NewClient("http://127.0.0.1:6969/")
//	out, err := c.Predict(ctx, "/run_tts_script", args)
package gradio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/teslashibe/go-parrot/internal/httpc"
)

// Protocol selects the transport used for predictions.
type Protocol string

const (
	ProtocolAuto      Protocol = "auto"
	ProtocolSSE       Protocol = "sse"
	ProtocolWebSocket Protocol = "ws"
)

// ParseProtocol maps a config value to a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ProtocolAuto, nil
	case "sse", "http":
		return ProtocolSSE, nil
	case "ws", "websocket":
		return ProtocolWebSocket, nil
	}
	return "", fmt.Errorf("gradio: unknown protocol %q", s)
}

// Config holds client configuration.
type Config struct {
	Protocol   Protocol
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Config)

// WithProtocol forces a transport instead of detecting it.
func WithProtocol(p Protocol) Option {
	return func(c *Config) { c.Protocol = p }
}

// WithHTTPClient sets the HTTP client. Its timeout should be zero since
// results arrive on a long-lived stream; bound calls with the context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Client calls endpoints of one Gradio app.
type Client struct {
	base    *url.URL
	proto   Protocol
	http    *http.Client
	logger  *slog.Logger
	session string

	mu   sync.Mutex
	app  *AppConfig
	info *APIInfo
}

// NewClient creates a client for the app at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	cfg := &Config{Protocol: ProtocolAuto, Logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gradio: invalid base URL %q", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(0)
	}

	return &Client{
		base:    u,
		proto:   cfg.Protocol,
		http:    hc,
		logger:  cfg.Logger.With("component", "gradio.client"),
		session: uuid.NewString(),
	}, nil
}

// BaseURL returns the app's base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Session returns the session hash sent with queued jobs.
func (c *Client) Session() string {
	return c.session
}

// Predict calls the named endpoint with positional data and returns the
// output values. api may be given with or without its leading slash.
func (c *Client) Predict(ctx context.Context, api string, data []any) ([]any, error) {
	api = strings.TrimPrefix(api, "/")
	if data == nil {
		data = []any{}
	}

	proto, err := c.protocol(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("predict", "api", api, "protocol", proto, "args", len(data))

	if proto == ProtocolWebSocket {
		return c.predictWS(ctx, api, data)
	}
	return c.predictSSE(ctx, api, data)
}

// Health fetches the app config, which proves the app is up and serving.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, httpc.DefaultPingTimeout)
	defer cancel()

	_, err := c.fetchConfig(ctx)
	return err
}

func (c *Client) protocol(ctx context.Context) (Protocol, error) {
	if c.proto != ProtocolAuto {
		return c.proto, nil
	}
	app, err := c.Config(ctx)
	if err != nil {
		return "", err
	}
	return app.Transport(), nil
}

// endpointURL joins path segments onto the base URL and the app's API prefix.
func (c *Client) endpointURL(prefix string, parts ...string) string {
	u := *c.base
	u.Path = c.base.Path + prefix + "/" + strings.Join(parts, "/")
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("gradio: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrProtocol, rawURL, err)
	}
	return nil
}

func httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL.String(),
		Body:       strings.TrimSpace(string(body)),
	}
}

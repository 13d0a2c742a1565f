package inference

import (
	"log/slog"
	"net/http"
	"time"
)

// Defaults for a local Ollama install.
const (
	DefaultBaseURL       = "http://127.0.0.1:11434"
	DefaultOpenAIBaseURL = "http://127.0.0.1:11434/v1"
	DefaultModel         = "llama3"
)

// Config holds provider configuration.
type Config struct {
	// Connection
	BaseURL    string       // API base URL
	APIKey     string       // API key (optional for local providers)
	HTTPClient *http.Client // Overrides the default transport

	// Model
	Model     string // Default chat model
	KeepAlive string // Ollama keep_alive, e.g. "5m"; empty keeps the server default

	// Request defaults
	MaxTokens   int
	Temperature float64

	// Timeout bounds a whole Chat call, including the streamed body.
	Timeout time.Duration

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the API base URL.
// Examples: "http://127.0.0.1:11434", "http://127.0.0.1:11434/v1"
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithModel sets the default chat model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithKeepAlive sets how long Ollama keeps the model loaded after a request.
func WithKeepAlive(d string) Option {
	return func(c *Config) { c.KeepAlive = d }
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for a local Ollama server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		Model:      DefaultModel,
		Timeout:    120 * time.Second,
		MaxRetries: 1,
		RetryDelay: 250 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if c.Model == "" {
		return ErrNoModel
	}
	return nil
}

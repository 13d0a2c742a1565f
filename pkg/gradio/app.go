package gradio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// AppConfig is the subset of an app's /config document the client uses.
type AppConfig struct {
	Version      string       `json:"version"`
	Protocol     string       `json:"protocol"`
	APIPrefix    string       `json:"api_prefix"`
	Dependencies []Dependency `json:"dependencies"`
}

// Dependency is one event handler of the app.
type Dependency struct {
	ID      *int   `json:"id"`
	APIName any    `json:"api_name"` // string, or false when hidden
	Queue   *bool  `json:"queue"`
	Trigger string `json:"trigger"`
}

// Name returns the API name, or "" when the handler is not exposed.
func (d Dependency) Name() string {
	s, _ := d.APIName.(string)
	return s
}

// Transport reports the protocol the app speaks.
func (a *AppConfig) Transport() Protocol {
	switch {
	case strings.HasPrefix(a.Protocol, "sse"):
		return ProtocolSSE
	case a.Protocol == "ws":
		return ProtocolWebSocket
	case majorVersion(a.Version) > 0 && majorVersion(a.Version) < 4:
		return ProtocolWebSocket
	}
	return ProtocolSSE
}

// FnIndex returns the function index of the named endpoint.
func (a *AppConfig) FnIndex(api string) (int, error) {
	api = strings.TrimPrefix(api, "/")
	for i, d := range a.Dependencies {
		if d.Name() != api {
			continue
		}
		if d.ID != nil {
			return *d.ID, nil
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: /%s", ErrEndpointNotFound, api)
}

func majorVersion(v string) int {
	head, _, _ := strings.Cut(v, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

// Config returns the app config, fetching it on first use.
func (c *Client) Config(ctx context.Context) (*AppConfig, error) {
	c.mu.Lock()
	app := c.app
	c.mu.Unlock()
	if app != nil {
		return app, nil
	}
	return c.fetchConfig(ctx)
}

func (c *Client) fetchConfig(ctx context.Context) (*AppConfig, error) {
	var app AppConfig
	if err := c.getJSON(ctx, c.endpointURL("", "config"), &app); err != nil {
		return nil, err
	}
	app.APIPrefix = strings.TrimSuffix(app.APIPrefix, "/")

	c.mu.Lock()
	c.app = &app
	c.mu.Unlock()

	c.logger.Debug("app config loaded",
		"version", app.Version,
		"protocol", app.Transport(),
		"dependencies", len(app.Dependencies),
	)
	return &app, nil
}

// apiPrefix returns "/gradio_api" on Gradio 5 apps and "" otherwise.
// A failed config fetch falls back to "" so that calls still get a
// meaningful transport error.
func (c *Client) apiPrefix(ctx context.Context) string {
	app, err := c.Config(ctx)
	if err != nil {
		return ""
	}
	return app.APIPrefix
}

// APIInfo is the app's /info document.
type APIInfo struct {
	NamedEndpoints map[string]Endpoint `json:"named_endpoints"`
}

// Endpoint describes the parameters of one named endpoint.
type Endpoint struct {
	Parameters []Parameter `json:"parameters"`
}

// Parameter is one positional input of an endpoint.
type Parameter struct {
	Label      string `json:"label"`
	Name       string `json:"parameter_name"`
	HasDefault bool   `json:"parameter_has_default"`
	Default    any    `json:"parameter_default"`
	Component  string `json:"component"`
}

// Info returns the app's API description, fetching it on first use.
func (c *Client) Info(ctx context.Context) (*APIInfo, error) {
	c.mu.Lock()
	info := c.info
	c.mu.Unlock()
	if info != nil {
		return info, nil
	}

	var fetched APIInfo
	if err := c.getJSON(ctx, c.endpointURL(c.apiPrefix(ctx), "info"), &fetched); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.info = &fetched
	c.mu.Unlock()
	return &fetched, nil
}

// Endpoint returns the description of the named endpoint.
func (c *Client) Endpoint(ctx context.Context, api string) (*Endpoint, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return nil, err
	}
	ep, ok := info.NamedEndpoints["/"+strings.TrimPrefix(api, "/")]
	if !ok {
		return nil, fmt.Errorf("%w: /%s", ErrEndpointNotFound, strings.TrimPrefix(api, "/"))
	}
	return &ep, nil
}

// Args orders named values into the endpoint's positional inputs.
// Parameters without a value take their declared default; a parameter with
// neither fails with ErrMissingArgument. Names the endpoint does not declare
// are returned as unused.
func (e *Endpoint) Args(named map[string]any) (args []any, unused []string, err error) {
	declared := make(map[string]bool, len(e.Parameters))
	args = make([]any, len(e.Parameters))

	for i, p := range e.Parameters {
		declared[p.Name] = true
		if v, ok := named[p.Name]; ok {
			args[i] = v
			continue
		}
		if !p.HasDefault {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingArgument, p.Name)
		}
		args[i] = p.Default
	}

	for name := range named {
		if !declared[name] {
			unused = append(unused, name)
		}
	}
	return args, unused, nil
}

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

type Client struct {
	httpClient *http.Client
	options    *options
}

type options struct {
	endpointConfig  EndpointConfig
	defaultSettings *EndpointSettings
	middlewares     []Middleware
	hooks           *HooksConfig
	transport       http.RoundTripper
}

type Option func(*options)

// WithEndpointConfig picks settings per call from the method and URL path. A
// nil result falls back to the default settings.
func WithEndpointConfig(ec EndpointConfig) Option {
	return func(o *options) { o.endpointConfig = ec }
}
func WithDefaultSettings(s *EndpointSettings) Option {
	return func(o *options) { o.defaultSettings = s }
}
func WithMiddleware(mw Middleware) Option {
	return func(o *options) {
		if mw != nil {
			o.middlewares = append(o.middlewares, mw)
		}
	}
}
func WithHooks(hooks *HooksConfig) Option { return func(o *options) { o.hooks = hooks } }

// WithTransport replaces http.DefaultTransport as the innermost RoundTripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

func NewClient(opts ...Option) *Client {
	o := &options{
		defaultSettings: &EndpointSettings{Headers: map[string]string{}},
		hooks:           &HooksConfig{},
		transport:       http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.hooks == nil {
		o.hooks = &HooksConfig{}
	}
	transport := o.transport
	for i := len(o.middlewares) - 1; i >= 0; i-- {
		transport = o.middlewares[i](transport)
	}
	// Per-call deadlines come from the request context, never from http.Client.
	return &Client{
		httpClient: &http.Client{Transport: transport},
		options:    o,
	}
}

func (c *Client) settingsFor(req *http.Request) *EndpointSettings {
	var cfg *EndpointSettings
	if c.options.endpointConfig != nil {
		cfg = c.options.endpointConfig(req.Method, req.URL.Path)
	}
	if cfg == nil {
		cfg = c.options.defaultSettings
	}
	return cfg.clone()
}

// Do sends req exactly once. A transport failure or a status outside
// [200, 300) is returned as *Error; in the status case the body is closed
// without being read unless ErrorBodyLimit asks for a prefix of it. On success the body is fully buffered, so the caller
// may read it after Do returns.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, *Error) {
	cfg := c.settingsFor(req)
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	req = req.WithContext(ctx)

	for k, v := range c.options.defaultSettings.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	info := &RequestInfo{Method: req.Method, URL: req.URL.String()}
	if c.options.hooks.PreRequest != nil {
		c.options.hooks.PreRequest(ctx, info)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(ctx, info, &Error{
			Kind:   KindTransport,
			Err:    err,
			Method: req.Method,
			URL:    info.URL,
		})
	}
	if !Success(resp.StatusCode) {
		var snippet []byte
		if cfg.ErrorBodyLimit > 0 {
			snippet, _ = io.ReadAll(io.LimitReader(resp.Body, cfg.ErrorBodyLimit))
		}
		resp.Body.Close()
		return nil, c.fail(ctx, info, &Error{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
			Method:     req.Method,
			URL:        info.URL,
			Header:     resp.Header.Clone(),
			Body:       snippet,
		})
	}

	var body io.Reader = resp.Body
	if cfg.MaxResponseSize > 0 {
		body = io.LimitReader(resp.Body, cfg.MaxResponseSize)
	}
	data, err := io.ReadAll(body)
	resp.Body.Close()
	if err != nil {
		return nil, c.fail(ctx, info, &Error{
			Kind:       KindTransport,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("reading response body: %w", err),
			Method:     req.Method,
			URL:        info.URL,
		})
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	resp.ContentLength = int64(len(data))

	if c.options.hooks.PostRequest != nil {
		c.options.hooks.PostRequest(ctx, info, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) fail(ctx context.Context, info *RequestInfo, e *Error) *Error {
	if c.options.hooks.OnError != nil {
		c.options.hooks.OnError(ctx, info, e)
	}
	return e
}

func (c *Client) newRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Request, *Error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err, Method: method, URL: url}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, *Error) {
	req, cErr := c.newRequest(ctx, http.MethodGet, url, nil, headers)
	if cErr != nil {
		return nil, cErr
	}
	return c.Do(ctx, req)
}

func (c *Client) Post(ctx context.Context, url string, body []byte, headers map[string]string) (*http.Response, *Error) {
	req, cErr := c.newRequest(ctx, http.MethodPost, url, body, headers)
	if cErr != nil {
		return nil, cErr
	}
	return c.Do(ctx, req)
}

func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

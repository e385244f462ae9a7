package client

import (
	"context"
	"time"
)

// EndpointSettings tunes a single call. Every call is attempted once; the zero
// value means no client-side timeout and no extra headers.
type EndpointSettings struct {
	Timeout         time.Duration
	Headers         map[string]string
	MaxResponseSize int64
	// ErrorBodyLimit keeps up to this many bytes of a non-2xx body on the
	// returned *Error. Zero leaves the body unread.
	ErrorBodyLimit int64
}

func (s *EndpointSettings) clone() *EndpointSettings {
	if s == nil {
		return &EndpointSettings{Headers: map[string]string{}}
	}
	out := *s
	out.Headers = make(map[string]string, len(s.Headers))
	for k, v := range s.Headers {
		out.Headers[k] = v
	}
	return &out
}

type RequestInfo struct {
	Method string
	URL    string
}

type EndpointConfig func(method, path string) *EndpointSettings

type HooksConfig struct {
	PreRequest  func(ctx context.Context, req *RequestInfo)
	PostRequest func(ctx context.Context, req *RequestInfo, status int)
	OnError     func(ctx context.Context, req *RequestInfo, err *Error)
}

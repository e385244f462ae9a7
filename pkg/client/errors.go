package client

import (
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	// KindTransport means no response was received at all.
	KindTransport ErrorKind = iota + 1
	// KindStatus means a response arrived with a status outside [200, 300).
	KindStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
	Method     string
	URL        string
	Header     http.Header
	// Body is the prefix of a non-2xx body kept when ErrorBodyLimit is set.
	Body []byte
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("[HTTP] %s %s: status=%d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("[HTTP] %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) IsTransport() bool { return e.Kind == KindTransport }

func (e *Error) IsStatus() bool { return e.Kind == KindStatus }

// Success reports whether code is in [200, 300).
func Success(code int) bool {
	return code >= 200 && code < 300
}

package botpress

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyResponse = errors.New("empty response from Botpress")
	ErrNotConfigured = errors.New("botpress: missing configuration")
)

// StatusError is any answer other than 200 from the webhook, or a non-2xx
// from the Chat and Admin APIs. Body holds the start of the Chat or Admin API
// answer and is empty for the webhook.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("Botpress returned status code %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("Botpress returned status code %d", e.StatusCode)
}

// NetworkError wraps a failure that produced no response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError is a 2xx body that is not the JSON shape expected.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

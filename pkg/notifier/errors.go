package notifier

import "fmt"

// HTTPStatusError is returned when the simulator answers with a status outside
// [200, 300). The response body is never read.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// TransportError is returned when no response was received at all. Its
// message is the transport's own.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is returned when a 2xx body is not a JSON object with a string
// "response" field.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid JSON response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

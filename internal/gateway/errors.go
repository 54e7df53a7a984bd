package gateway

import (
	"fmt"
	"net/http"
)

// NetworkError means the request never produced a usable response: the
// transport failed or the body could not be parsed.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx response from a reachable backend.
type HTTPError struct {
	Op     string
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: bad status: %d %s: %s", e.Op, e.Status, http.StatusText(e.Status), e.Detail)
	}
	return fmt.Sprintf("%s: bad status: %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

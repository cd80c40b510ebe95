package router

import "fmt"

// HTTPError is a request failure that maps to a problem-details response.
// Handlers return it instead of building error responses themselves.
type HTTPError struct {
	Status   int
	Detail   string
	Instance string

	// Err is the underlying cause, if any. It is logged but never sent to the
	// client.
	Err error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("router: %d %s: %s: %v", e.Status, e.Instance, e.Detail, e.Err)
	}
	return fmt.Sprintf("router: %d %s: %s", e.Status, e.Instance, e.Detail)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func badRequest(instance, detail string) *HTTPError {
	return &HTTPError{Status: 400, Detail: detail, Instance: instance}
}

func notFound(instance, detail string) *HTTPError {
	return &HTTPError{Status: 404, Detail: detail, Instance: instance}
}

package relay

import "fmt"

// ServiceError is returned when a downstream service answers with a
// non-2xx status. Body carries a snippet of the response for operator
// logs.
type ServiceError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Body)
}

// UnavailableError is returned when a downstream call fails at the
// network level before any HTTP status was received.
type UnavailableError struct {
	Service string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

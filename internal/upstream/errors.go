package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a failed upstream request. Status holds the HTTP
// status code, zero for transport-level failures.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("upstream %s failed: status %d", e.Op, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is an upstream rate-limit signal.
// Only this case is retried; everything else aborts the fetch.
func IsRateLimited(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Status == http.StatusTooManyRequests
}

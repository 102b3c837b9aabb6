package attendance

import (
	"fmt"
	"strings"
)

// RemoteRejectionError reports a non-2xx answer from the ERP endpoint.
type RemoteRejectionError struct {
	StatusCode int
	Body       string
}

func (e *RemoteRejectionError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("remote rejected request: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("remote rejected request: HTTP %d: %s", e.StatusCode, body)
}

// TransportError reports a request that never produced a response.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error { return e.Cause }

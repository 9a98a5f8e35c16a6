package spoonacular

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies provider failures into the small set of cases
// callers act on.
type ErrorKind string

const (
	// KindQuotaExceeded means the provider reported a rate or quota limit
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	// KindServerError means the provider returned a 5xx status
	KindServerError ErrorKind = "server_error"
	// KindNotFound means the provider reported the resource missing
	KindNotFound ErrorKind = "not_found"
	// KindNetwork means the transport failed before any HTTP response
	KindNetwork ErrorKind = "network"
	// KindUnknown covers everything else
	KindUnknown ErrorKind = "unknown"
)

// APIError is a classified provider failure. It carries the originating
// endpoint for diagnostics. No retries happen at this layer; retry policy
// belongs to the caller.
type APIError struct {
	Kind     ErrorKind
	Status   int // HTTP status, 0 when the transport itself failed
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("spoonacular: %s: GET %s returned %d: %s", e.Kind, e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("spoonacular: %s: GET %s: %s", e.Kind, e.Endpoint, e.Message)
}

// classify maps an HTTP status to an ErrorKind. Spoonacular reports an
// exhausted quota as 402; 429 is treated the same way.
func classify(status int) ErrorKind {
	switch {
	case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
		return KindQuotaExceeded
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}

func statusError(endpoint string, status int, msg string) *APIError {
	return &APIError{Kind: classify(status), Status: status, Endpoint: endpoint, Message: msg}
}

func networkError(endpoint string, err error) *APIError {
	return &APIError{Kind: KindNetwork, Endpoint: endpoint, Message: err.Error()}
}

package inference

import "fmt"

// ErrorKind classifies inference-call failures. Transient kinds are retried,
// the rest fail the call immediately.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "Timeout"
	KindRateLimited  ErrorKind = "RateLimited"
	KindAuthFailure  ErrorKind = "AuthFailure"
	KindServiceError ErrorKind = "ServiceError"
	KindUnknown      ErrorKind = "Unknown"
)

// Error is returned once the retry budget is spent or a non-transient
// failure is hit. Attempts counts every request actually dispatched.
type Error struct {
	Kind        ErrorKind
	Attempts    int
	LastMessage string
}

func (e *Error) Error() string {
	return fmt.Sprintf("inference %s after %d attempt(s): %s", e.Kind, e.Attempts, e.LastMessage)
}

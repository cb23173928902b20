package document

import "fmt"

// ErrorKind classifies loader failures.
type ErrorKind string

const (
	KindInvalidFormat ErrorKind = "InvalidFormat" // byte stream is not a parseable PDF
	KindTooLarge      ErrorKind = "TooLarge"      // size exceeds the configured limit
	KindUnreadable    ErrorKind = "Unreadable"    // opened, but no page yields text
	KindEmpty         ErrorKind = "Empty"         // empty or implausibly small input
)

// Error is the loader's failure value.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("document %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("document %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

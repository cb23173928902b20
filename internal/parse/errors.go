package parse

import "fmt"

// ErrorKind classifies validator failures. There is only one today: even the
// lenient pass recovered nothing.
type ErrorKind string

const KindUnparsable ErrorKind = "UnparsableResponse"

type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("response %s: %s", e.Kind, e.Message)
}

package llm

import "fmt"

// Error represents a failed model invocation
type Error struct {
	Provider Provider
	Model    string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s call failed (model %s): %s: %v", e.Provider, e.Model, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s call failed (model %s): %s", e.Provider, e.Model, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

package extraction

import "errors"

// FailureMessage is the user-facing message of every extraction failure.
const FailureMessage = "Impossible d'extraire les informations de l'offre"

var (
	// ErrNoJSON means the model answer contained no JSON object.
	ErrNoJSON = errors.New("no JSON object in model response")
	// ErrBlankField means a required text field was empty after trimming.
	ErrBlankField = errors.New("required field is blank")
)

// Error reports that a model answer could not be turned into an Extraction.
// Raw holds the model text for logging; Cause holds the underlying problem.
type Error struct {
	Raw   string
	Cause error
}

func (e *Error) Error() string {
	return FailureMessage
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Detail returns the message with its cause, for logs.
func (e *Error) Detail() string {
	if e.Cause == nil {
		return FailureMessage
	}
	return FailureMessage + ": " + e.Cause.Error()
}

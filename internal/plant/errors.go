package plant

import "fmt"

// ErrorKind classifies failures surfaced at the service boundary.
type ErrorKind int

const (
	// InvalidInput is a missing or malformed request field.
	InvalidInput ErrorKind = iota + 1
	// UnknownDifficulty is a difficulty label outside the enumeration.
	UnknownDifficulty
	// CollaboratorUnavailable is a store or upstream failure.
	CollaboratorUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case UnknownDifficulty:
		return "unknown_difficulty"
	case CollaboratorUnavailable:
		return "collaborator_unavailable"
	default:
		return "unknown"
	}
}

// Error carries an ErrorKind and, for input errors, the offending field.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Message, e.Err)
	case e.Field != "":
		return e.Field + ": " + e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsInputError reports whether the error should be returned to the caller
// as a rejected request.
func (e *Error) IsInputError() bool {
	return e.Kind == InvalidInput || e.Kind == UnknownDifficulty
}

// Invalid builds an InvalidInput error for field.
func Invalid(field, message string) *Error {
	return &Error{Kind: InvalidInput, Field: field, Message: message}
}

// Unavailable wraps a collaborator failure.
func Unavailable(message string, err error) *Error {
	return &Error{Kind: CollaboratorUnavailable, Message: message, Err: err}
}

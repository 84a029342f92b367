package orchestrators

// ValidationError marks a user-correctable input failure. Its message is
// shown to the submitter verbatim and never logged as a system fault.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErr(err error) *ValidationError {
	return &ValidationError{Message: err.Error()}
}

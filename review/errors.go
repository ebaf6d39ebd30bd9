package review

import "fmt"

// StateError is a user-visible permission or state failure. The code
// (SE/AE/RSE plus a call-site id) is shown to the user so support can
// locate the rejecting check.
type StateError struct {
	Code    string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Code prefixes: SE sentence, AE attack, RSE report status.
func sentenceErr(id int, format string, args ...interface{}) *StateError {
	return &StateError{Code: fmt.Sprintf("SE-%d", id), Message: fmt.Sprintf(format, args...)}
}

func attackErr(id int, format string, args ...interface{}) *StateError {
	return &StateError{Code: fmt.Sprintf("AE-%d", id), Message: fmt.Sprintf(format, args...)}
}

func statusErr(id int, format string, args ...interface{}) *StateError {
	return &StateError{Code: fmt.Sprintf("RSE-%d", id), Message: fmt.Sprintf(format, args...)}
}

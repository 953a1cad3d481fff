package ircmd

import "fmt"

// Reason classifies a ValidationError.
type Reason int

const (
	// ReasonMissing means a required argument was not given.
	ReasonMissing Reason = iota + 1
	// ReasonMalformed means an argument was given but has the wrong shape.
	ReasonMalformed
)

func (r Reason) String() string {
	switch r {
	case ReasonMissing:
		return "missing"
	case ReasonMalformed:
		return "malformed"
	default:
		return "invalid"
	}
}

// ValidationError is returned when a command line cannot become a record.
// Its message is meant to be relayed to the user verbatim.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason Reason
	Msg    string
}

func (e *ValidationError) Error() string { return e.Msg }

func missing(k Kind, field, msg string) *ValidationError {
	return &ValidationError{Kind: k, Field: field, Reason: ReasonMissing, Msg: msg}
}

func malformed(k Kind, field, msg string) *ValidationError {
	return &ValidationError{Kind: k, Field: field, Reason: ReasonMalformed, Msg: msg}
}

// UnknownCommandError is returned for a command word with no translator.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("command %s not found", e.Name)
}

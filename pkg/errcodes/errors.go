package errcodes

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	CodeAborted            = "aborted"
	CodeCommandFailed      = "command_failed"
	CodeMalformedContainer = "malformed_container"
	CodeNotConfigured      = "not_configured"
	CodeTimedOut           = "timed_out"
)

type Error struct {
	Code    string
	Message string
	Detail  string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.Code = err.Code
	te.Message = err.Message
	te.Detail = err.Detail
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Code == err.Code &&
		te.Message == err.Message &&
		te.Detail == err.Detail
}

// Aborted returns an error indicating the user cancelled a long-running
// operation. Partial results from the operation must be discarded.
func Aborted(operation string) error {
	return &Error{
		CodeAborted,
		fmt.Sprintf("%s cancelled by user.", operation),
		"",
	}
}

// OperationTimedOut returns an error indicating the device stopped reporting
// progress for a staged command before it completed.
func OperationTimedOut(command string) error {
	return &Error{
		CodeTimedOut,
		fmt.Sprintf("Device operation %q timed out.", command),
		"",
	}
}

// CommandFailed returns an error carrying the device-reported message list
// for a command that completed with warnings or errors.
func CommandFailed(command string, code int, messages []string) error {
	return &Error{
		CodeCommandFailed,
		fmt.Sprintf("Device reported %s for %q.", statusName(code), command),
		fmt.Sprintf("code: %d\n%s", code, strings.Join(messages, "\n")),
	}
}

// NotConfigured returns an error indicating a feature's custom field has no
// mapping. Callers log it and skip the field rather than escalating.
func NotConfigured(field string) error {
	return &Error{
		CodeNotConfigured,
		fmt.Sprintf("No custom field mapped for %s.", field),
		"",
	}
}

// MalformedContainer returns an error indicating a book archive could not be
// parsed for hashing.
func MalformedContainer(path string) error {
	return &Error{
		CodeMalformedContainer,
		fmt.Sprintf("Can't parse book container %q.", path),
		"",
	}
}

func statusName(code int) string {
	switch code {
	case 1:
		return "warnings"
	case 2:
		return "errors"
	default:
		return "in progress"
	}
}

// HasCode reports whether err is an *Error with the given code, unwrapping
// any stack-trace wrappers first.
func HasCode(err error, code string) bool {
	e, ok := errors.Cause(err).(*Error)
	if !ok {
		return false
	}
	return e.Code == code
}

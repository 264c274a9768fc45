package depgraph

import (
	"errors"
	"fmt"
)

// Code classifies a resolution failure.
type Code string

// Failure codes. Every coded failure is persistent: the same inputs always
// reproduce it.
const (
	UnknownModule            Code = "UNKNOWN_MODULE"
	InvalidVersion           Code = "INVALID_VERSION"
	VersionResolutionFailure Code = "VERSION_RESOLUTION_FAILURE"
	CompatibilityFailure     Code = "COMPATIBILITY_FAILURE"
	YankedVersion            Code = "YANKED_VERSION"
	MalformedAllowlistEntry  Code = "MALFORMED_ALLOWLIST_ENTRY"
	DirectDepsMismatch       Code = "DIRECT_DEPS_MISMATCH"
	InvalidRepoSpec          Code = "INVALID_REPO_SPEC"
	LockfileMismatch         Code = "LOCKFILE_MISMATCH"
	Cycle                    Code = "CYCLE"
)

// Error is a coded resolution failure.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error whose message is err's, keeping err in the chain.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

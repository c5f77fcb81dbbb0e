package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Analyzer errors wrap exactly one of these so callers can branch
// with errors.Is while the message text stays human readable.
var (
	// ErrNotFound marks a missing table, endpoint, method, file or $ref.
	ErrNotFound = errors.New("not found")
	// ErrMalformed marks content that cannot be parsed at all.
	ErrMalformed = errors.New("malformed")
	// ErrConnectivity marks database or HTTP failures, including auth.
	ErrConnectivity = errors.New("connectivity")
	// ErrValidation marks inconsistent caller-supplied parameters.
	ErrValidation = errors.New("validation")
)

// Error is an analyzer error with a fixed user-facing message.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && !strings.Contains(e.Msg, e.Err.Error()) {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Is matches the error kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NotFoundf formats an ErrNotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Malformedf formats an ErrMalformed error.
func Malformedf(format string, args ...any) error {
	return &Error{Kind: ErrMalformed, Msg: fmt.Sprintf(format, args...)}
}

// Validationf formats an ErrValidation error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// Connectivity wraps cause as an ErrConnectivity error with msg.
func Connectivity(msg string, cause error) error {
	return &Error{Kind: ErrConnectivity, Msg: msg, Err: cause}
}

// FormatList renders names the way error messages list alternatives:
// "['a', 'b']".
func FormatList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

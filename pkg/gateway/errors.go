package gateway

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a gateway rejection.
type Kind int

const (
	KindSecurity Kind = iota
	KindPathTraversal
	KindSymlink
	KindFileValidation
	KindReDoS
	KindRateLimit
)

// Sentinel errors, one per Kind, for use with errors.Is.
var (
	ErrSecurity       = errors.New("SECURITY")
	ErrPathTraversal  = errors.New("PATH_TRAVERSAL")
	ErrSymlink        = errors.New("SYMLINK")
	ErrFileValidation = errors.New("FILE_VALIDATION")
	ErrReDoS          = errors.New("REDOS")
	ErrRateLimit      = errors.New("RATE_LIMIT")
)

// Error codes carried by Error.Code.
const (
	CodeSecurity       = "SEC_001"
	CodePathTraversal  = "PATH_TRAVERSAL_001"
	CodeSymlink        = "SYMLINK_001"
	CodeFileValidation = "FILE_VAL_001"
	CodeReDoS          = "REDOS_001"
	CodeRateLimit      = "RATE_LIMIT_001"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeInvalidPattern = "INVALID_PATTERN"
	CodeHash           = "HASH_ERROR"
	CodeIntegrity      = "INTEGRITY_ERROR"
	CodeRead           = "READ_ERROR"
)

// Reasons attached to FileValidation errors.
const (
	ReasonInvalidExtension = "INVALID_EXTENSION"
	ReasonFileTooSmall     = "FILE_TOO_SMALL"
	ReasonFileTooLarge     = "FILE_TOO_LARGE"
	ReasonStatError        = "STAT_ERROR"
)

// Error is the single error type returned by the gateway. Every rejection
// carries a Kind and a Code; the remaining fields are filled in when the
// stage that failed knows them.
type Error struct {
	Kind    Kind
	Code    string
	Reason  string
	Message string

	// FilePath is the path the caller asked about, AttemptedPath the form
	// that was actually checked (literal input or resolved absolute path).
	FilePath      string
	AttemptedPath string
	LinkTarget    string
	Pattern       string
	Operation     string

	Timestamp time.Time
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's Kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Name returns the taxonomy name reported to callers as errorType.
func (e *Error) Name() string {
	return e.Kind.String()
}

// Tag returns the most specific machine-readable tag: the Reason when one
// is set, otherwise the Code.
func (e *Error) Tag() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Code
}

func (k Kind) String() string {
	switch k {
	case KindPathTraversal:
		return "PathTraversalError"
	case KindSymlink:
		return "SymlinkError"
	case KindFileValidation:
		return "FileValidationError"
	case KindReDoS:
		return "ReDoSError"
	case KindRateLimit:
		return "RateLimitError"
	default:
		return "SecurityError"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindPathTraversal:
		return ErrPathTraversal
	case KindSymlink:
		return ErrSymlink
	case KindFileValidation:
		return ErrFileValidation
	case KindReDoS:
		return ErrReDoS
	case KindRateLimit:
		return ErrRateLimit
	default:
		return ErrSecurity
	}
}

func newSecurityError(at time.Time, code, msg, filePath string, cause error) *Error {
	return &Error{
		Kind:      KindSecurity,
		Code:      code,
		Message:   msg,
		FilePath:  filePath,
		Timestamp: at,
		Err:       cause,
	}
}

func newPathTraversalError(at time.Time, msg, filePath, attempted string) *Error {
	return &Error{
		Kind:          KindPathTraversal,
		Code:          CodePathTraversal,
		Message:       msg,
		FilePath:      filePath,
		AttemptedPath: attempted,
		Timestamp:     at,
	}
}

func newSymlinkError(at time.Time, msg, filePath, target string) *Error {
	return &Error{
		Kind:       KindSymlink,
		Code:       CodeSymlink,
		Message:    msg,
		FilePath:   filePath,
		LinkTarget: target,
		Timestamp:  at,
	}
}

func newFileValidationError(at time.Time, msg, filePath, reason string, cause error) *Error {
	return &Error{
		Kind:      KindFileValidation,
		Code:      CodeFileValidation,
		Reason:    reason,
		Message:   msg,
		FilePath:  filePath,
		Timestamp: at,
		Err:       cause,
	}
}

func newReDoSError(at time.Time, msg, pattern, filePath string) *Error {
	return &Error{
		Kind:      KindReDoS,
		Code:      CodeReDoS,
		Message:   msg,
		Pattern:   pattern,
		FilePath:  filePath,
		Timestamp: at,
	}
}

func newRateLimitError(at time.Time, msg, operation string) *Error {
	return &Error{
		Kind:      KindRateLimit,
		Code:      CodeRateLimit,
		Message:   msg,
		Operation: operation,
		Timestamp: at,
	}
}

// AsError extracts the gateway error from err, if there is one.
func AsError(err error) (*Error, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}

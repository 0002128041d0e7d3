// Package trustcore holds the error taxonomy shared across the trust
// core's components, so callers can errors.As into a single closed type
// instead of string-matching each subsystem's own error strings.
//
// Grounded on the teacher's internal/security/jwt.go sentinel-error
// convention, generalized to a single tagged type because the taxonomy
// here spans multiple packages (sandbox, ratelimit, approval) that each
// already export their own sentinels; TrustError wraps those without
// replacing them.
package trustcore

import "fmt"

// Code is one of the closed set of error codes named in the taxonomy.
// Implementers must not add new codes without updating the fixtures
// that exercise them.
type Code string

const (
	CodeRateLimited        Code = "RateLimited"
	CodeOriginRejected     Code = "OriginRejected"
	CodePathEscapesSandbox Code = "PathEscapesSandbox"
	CodeSensitivePath      Code = "SensitivePath"
	CodeSymlinkForbidden   Code = "SymlinkForbidden"
	CodeApprovalTimeout    Code = "ApprovalTimeout"
	CodeApprovalCancelled  Code = "ApprovalCancelled"
	CodeApprovalDenied     Code = "ApprovalDenied"
	CodeInvalidDecision    Code = "InvalidDecision"
	CodeApprovalNotFound   Code = "ApprovalNotFound"
	CodeEncryptionFailed   Code = "EncryptionFailed"
)

// TrustError carries a taxonomy Code plus a human-readable detail and,
// for RateLimited, the caller-facing retry hint.
type TrustError struct {
	Code         Code
	Detail       string
	RetryAfterMs int64
	Err          error
}

func (e *TrustError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *TrustError) Unwrap() error { return e.Err }

// New builds a TrustError with no wrapped cause.
func New(code Code, detail string) *TrustError {
	return &TrustError{Code: code, Detail: detail}
}

// Wrap builds a TrustError around an existing error, preserving it for
// errors.Is/errors.As chains that reach through TrustError.
func Wrap(code Code, err error) *TrustError {
	if err == nil {
		return &TrustError{Code: code}
	}
	return &TrustError{Code: code, Detail: err.Error(), Err: err}
}

// RateLimited builds the one taxonomy member that carries a retry hint.
func RateLimited(retryAfterMs int64) *TrustError {
	return &TrustError{Code: CodeRateLimited, RetryAfterMs: retryAfterMs}
}

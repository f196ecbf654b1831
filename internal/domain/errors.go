package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithDetail attaches a diagnostic string that is returned to the client.
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// Standard domain error constructors.

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHENTICATED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrAccountLocked(msg string) *AppError {
	return &AppError{Code: "ACCOUNT_LOCKED", Message: msg, Status: 429}
}

// ErrMisconfigured reports a missing server-side secret or credential field.
func ErrMisconfigured(msg string) *AppError {
	return &AppError{Code: "MISCONFIGURATION", Message: msg, Status: 500}
}

// ErrUpstream wraps an unexpected store failure.
func ErrUpstream(msg string, cause error) *AppError {
	return &AppError{Code: "UPSTREAM_FAILURE", Message: msg, Status: 500, Cause: cause}
}

// Named failures used by the token issuer and the plan import.

func ErrAccountDisabled() *AppError {
	return ErrForbidden("account is disabled")
}

func ErrInvalidCredential() *AppError {
	return ErrUnauthorized("invalid PIN")
}

func ErrMissingCredential(code string) *AppError {
	return ErrMisconfigured(fmt.Sprintf("account %s has no usable credential", code))
}

func ErrInvalidYear(year int) *AppError {
	return ErrValidation(fmt.Sprintf("invalid year %d", year))
}

func ErrEmptyUpload(msg string) *AppError {
	return ErrValidation(msg)
}

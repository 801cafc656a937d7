package apperror

import "errors"

// AppError is an error that carries the HTTP status to answer with and a
// stable machine-readable code clients can branch on.
type AppError struct {
	Status  int    // HTTP Status Code (e.g., 404, 409)
	Code    string // Stable identifier, e.g. "hold_expired"
	Message string // User-facing error message
	Err     error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by code, so a wrapped copy of a sentinel still
// satisfies errors.Is against the sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// New creates a new AppError with a status code, an error code and a message.
func New(status int, code, message string) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// Wrap returns a copy of the sentinel that carries err as its cause.
func Wrap(sentinel *AppError, err error) *AppError {
	return &AppError{
		Status:  sentinel.Status,
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Err:     err,
	}
}

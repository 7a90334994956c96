package errors

import "fmt"

// ErrorCode classifies session failures.
type ErrorCode string

const (
	ErrCodeAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"
	ErrCodeSignalingConnection    ErrorCode = "SIGNALING_CONNECTION"
	ErrCodeMediaAcquisition       ErrorCode = "MEDIA_ACQUISITION"
	ErrCodeNegotiation            ErrorCode = "NEGOTIATION"
	ErrCodeUnknownPeer            ErrorCode = "UNKNOWN_PEER"
	ErrCodeInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// AppError carries a classification code plus optional cause and context.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func WrapError(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

func NewAuthenticationRequiredError(message string) *AppError {
	return NewAppError(ErrCodeAuthenticationRequired, message)
}

func NewSignalingConnectionError(err error, message string) *AppError {
	return WrapError(err, ErrCodeSignalingConnection, message)
}

func NewMediaAcquisitionError(err error, message string) *AppError {
	return WrapError(err, ErrCodeMediaAcquisition, message)
}

func NewNegotiationError(err error, message string) *AppError {
	return WrapError(err, ErrCodeNegotiation, message)
}

func NewUnknownPeerError(message string) *AppError {
	return NewAppError(ErrCodeUnknownPeer, message)
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message)
}

// GetAppError extracts an AppError from an error chain, or nil.
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	type unwrapper interface {
		Unwrap() error
	}
	if u, ok := err.(unwrapper); ok {
		return GetAppError(u.Unwrap())
	}
	return nil
}

// HasCode reports whether err (or anything it wraps) is an AppError with the
// given code.
func HasCode(err error, code ErrorCode) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

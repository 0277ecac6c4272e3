package constants

import "net/http"

// APIError is a predefined error response: code, message and HTTP status.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// WithMessage returns a copy carrying a request-specific message, such as a
// validation failure.
func (e APIError) WithMessage(message string) APIError {
	return APIError{
		Code:    e.Code,
		Message: message,
		Status:  e.Status,
	}
}

var (
	ErrInvalidRequestBody = APIError{
		Code:    CodeInvalidRequest,
		Message: MsgInvalidRequestBody,
		Status:  http.StatusBadRequest,
	}
	ErrInternalError = APIError{
		Code:    CodeInternalError,
		Message: MsgInternalError,
		Status:  http.StatusInternalServerError,
	}
	ErrStorageUnavailable = APIError{
		Code:    CodeStorageUnavailable,
		Message: MsgStorageUnavailable,
		Status:  http.StatusServiceUnavailable,
	}
	ErrRateLimited = APIError{
		Code:    CodeRateLimited,
		Message: MsgRateLimited,
		Status:  http.StatusTooManyRequests,
	}
)

var (
	ErrUnauthorized = APIError{
		Code:    CodeUnauthorized,
		Message: MsgUnauthorized,
		Status:  http.StatusUnauthorized,
	}
	ErrForbidden = APIError{
		Code:    CodeForbidden,
		Message: MsgForbidden,
		Status:  http.StatusForbidden,
	}
	ErrLoginRequired = APIError{
		Code:    CodeForbidden,
		Message: MsgLoginRequired,
		Status:  http.StatusForbidden,
	}
)

var (
	ErrInvalidURL = APIError{
		Code:    CodeInvalidURL,
		Message: MsgInvalidURL,
		Status:  http.StatusBadRequest,
	}
	ErrInvalidCode = APIError{
		Code:    CodeInvalidCode,
		Message: MsgInvalidCode,
		Status:  http.StatusBadRequest,
	}
	ErrCodeTaken = APIError{
		Code:    CodeCodeTaken,
		Message: MsgCodeTaken,
		Status:  http.StatusConflict,
	}
	ErrLinkNotFound = APIError{
		Code:    CodeLinkNotFound,
		Message: MsgLinkNotFound,
		Status:  http.StatusNotFound,
	}
)

package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
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

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// FromHTTPStatus переводит ответ REST API с кодом >= 400 в ошибку приложения.
// Коды, которые клиент может осмысленно обработать (404, 409, 401, 403, 400/422),
// сохраняются, остальные сводятся к UPSTREAM_ERROR.
func FromHTTPStatus(status int, message string) *AppError {
	var code ErrorCode
	switch status {
	case http.StatusNotFound:
		code = ErrCodeNotFound
	case http.StatusConflict:
		code = ErrCodeConflict
	case http.StatusUnauthorized:
		code = ErrCodeUnauthorized
	case http.StatusForbidden:
		code = ErrCodeForbidden
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = ErrCodeBadRequest
	case http.StatusTooManyRequests:
		code = ErrCodeRateLimited
	default:
		code = ErrCodeUpstream
	}
	if message == "" {
		message = fmt.Sprintf("сервер вернул код %d", status)
	}
	return New(code, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeUpstream:
		return http.StatusBadGateway
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return hasCode(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

var (
	ErrRequestNotFound = New(ErrCodeNotFound, "заявка не найдена")
	ErrOfferNotFound   = New(ErrCodeNotFound, "предложение не найдено")
	ErrUnauthorized    = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden       = New(ErrCodeForbidden, "недостаточно прав")
	ErrActionInFlight  = New(ErrCodeConflict, "действие по заявке уже выполняется")
)

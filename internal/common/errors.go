package common

import (
	"errors"
	"fmt"
	"net/http"
)

// 错误分类，handler 层据此映射 HTTP 状态码
var (
	ErrValidation           = errors.New("validation failed")
	ErrConflict             = errors.New("conflict")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrRateLimited          = errors.New("rate limited")
)

// 响应体中的 code 字段
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeConflict            = "CONFLICT"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMedia    = "UNSUPPORTED_MEDIA_TYPE"
	CodeNotFound            = "NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeRequirementDisabled = "REQUIREMENT_DISABLED"
	CodeInternal            = "INTERNAL_ERROR"
)

// AppError 业务错误，Message 面向调用方，Kind 为上面的哨兵错误之一
type AppError struct {
	Kind    error
	Message string
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Kind
}

func newAppError(kind error, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation 400
func Validation(format string, args ...any) *AppError {
	return newAppError(ErrValidation, format, args...)
}

// Conflict 409
func Conflict(format string, args ...any) *AppError {
	return newAppError(ErrConflict, format, args...)
}

// PayloadTooLarge 413
func PayloadTooLarge(format string, args ...any) *AppError {
	return newAppError(ErrPayloadTooLarge, format, args...)
}

// UnsupportedMediaType 415
func UnsupportedMediaType(format string, args ...any) *AppError {
	return newAppError(ErrUnsupportedMediaType, format, args...)
}

// NotFound 404
func NotFound(format string, args ...any) *AppError {
	return newAppError(ErrNotFound, format, args...)
}

// Forbidden 403
func Forbidden(format string, args ...any) *AppError {
	return newAppError(ErrForbidden, format, args...)
}

// Classify 返回 HTTP 状态码、响应 code 以及可以安全暴露给调用方的消息。
// 未识别的错误一律视为 500，消息不包含内部细节。
func Classify(err error) (status int, code string, message string) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}

	switch {
	case errors.Is(err, ErrValidation):
		status, code = http.StatusBadRequest, CodeValidation
	case errors.Is(err, ErrConflict):
		status, code = http.StatusConflict, CodeConflict
	case errors.Is(err, ErrPayloadTooLarge):
		status, code = http.StatusRequestEntityTooLarge, CodePayloadTooLarge
	case errors.Is(err, ErrUnsupportedMediaType):
		status, code = http.StatusUnsupportedMediaType, CodeUnsupportedMedia
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrForbidden):
		status, code = http.StatusForbidden, CodeForbidden
	case errors.Is(err, ErrUnauthorized):
		status, code = http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, ErrRateLimited):
		status, code = http.StatusTooManyRequests, CodeRateLimited
	default:
		return http.StatusInternalServerError, CodeInternal, "Internal server error"
	}

	if message == "" {
		message = defaultMessages[code]
	}
	return status, code, message
}

var defaultMessages = map[string]string{
	CodeValidation:       "Invalid request",
	CodeConflict:         "Resource already exists",
	CodePayloadTooLarge:  "File too large",
	CodeUnsupportedMedia: "Unsupported file type",
	CodeNotFound:         "Resource not found",
	CodeForbidden:        "Forbidden",
	CodeUnauthorized:     "Authentication required",
	CodeRateLimited:      "Too many requests",
}

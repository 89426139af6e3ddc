package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/go-kratos/kratos/v2/errors"
)

// Reasons
const (
	ReasonBadRequest     = "BAD_REQUEST"
	ReasonNotFound       = "NOT_FOUND"
	ReasonConflict       = "CONFLICT"
	ReasonUpstream       = "UPSTREAM_ERROR"
	ReasonUnavailable    = "SERVICE_UNAVAILABLE"
	ReasonNotConfigured  = "NOT_CONFIGURED"
	ReasonRateLimited    = "RATE_LIMITED"
	ReasonInternalServer = "INTERNAL_SERVER_ERROR"
)

// NewBadRequest creates a new bad request error.
func NewBadRequest(message string) *errors.Error {
	return errors.BadRequest(ReasonBadRequest, message)
}

// NewNotFound creates a new not found error.
func NewNotFound(message string) *errors.Error {
	return errors.NotFound(ReasonNotFound, message)
}

// NewConflict creates a new conflict error.
func NewConflict(message string) *errors.Error {
	return errors.Conflict(ReasonConflict, message)
}

// NewUpstream 上游返回的错误，保留上游 HTTP 状态码
func NewUpstream(status int, message string) *errors.Error {
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	return errors.New(status, ReasonUpstream, message)
}

// NewUnavailable 熔断或依赖不可用
func NewUnavailable(message string) *errors.Error {
	return errors.ServiceUnavailable(ReasonUnavailable, message)
}

// NewNotConfigured 服务缺少必要配置
func NewNotConfigured(message string) *errors.Error {
	return errors.New(http.StatusInternalServerError, ReasonNotConfigured, message)
}

// NewTooManyRequests 请求过于频繁
func NewTooManyRequests(message string) *errors.Error {
	return errors.New(http.StatusTooManyRequests, ReasonRateLimited, message)
}

// NewInternalServerError creates a new internal server error.
func NewInternalServerError(message string) *errors.Error {
	return errors.InternalServer(ReasonInternalServer, message)
}

// StatusOf 错误链中 kratos 错误的 HTTP 状态码，没有时返回 fallback
func StatusOf(err error, fallback int) int {
	var se *errors.Error
	if stderrors.As(err, &se) {
		return int(se.Code)
	}
	return fallback
}

// ReasonOf 错误链中 kratos 错误的 reason
func ReasonOf(err error) string {
	var se *errors.Error
	if stderrors.As(err, &se) {
		return se.Reason
	}
	return ""
}

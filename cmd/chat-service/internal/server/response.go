package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	kerrors "github.com/go-kratos/kratos/v2/errors"

	"contextrelay/cmd/chat-service/internal/domain"
	"contextrelay/cmd/chat-service/internal/service"
	pkgerrors "contextrelay/pkg/errors"
)

// Response 统一响应格式
type Response struct {
	Code    int         `json:"code"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, err error) {
	se := parseError(err)
	_ = c.Error(err)
	c.JSON(int(se.Code), Response{
		Code:    int(se.Code),
		Reason:  se.Reason,
		Message: se.Message,
	})
}

// relayError 无状态转发接口的错误响应：{"error": "..."}
func relayError(c *gin.Context, err error) {
	se := parseError(err)
	_ = c.Error(err)
	c.JSON(int(se.Code), gin.H{"error": se.Message})
}

// parseError 将错误映射为带 HTTP 状态码的 kratos 错误，上游错误沿用上游状态码
func parseError(err error) *kerrors.Error {
	msg := service.ErrorMessage(err)

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return pkgerrors.NewNotFound(msg)
	case errors.Is(err, domain.ErrEmptyMessages),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrInvalidTurnRole):
		return pkgerrors.NewBadRequest(msg)
	case errors.Is(err, domain.ErrGenerationInProgress):
		return pkgerrors.NewConflict(msg)
	case errors.Is(err, domain.ErrAPIKeyMissing):
		return pkgerrors.NewNotConfigured(msg)
	case errors.Is(err, domain.ErrUpstream):
		return pkgerrors.NewUpstream(pkgerrors.StatusOf(err, http.StatusBadGateway), msg)
	}

	var se *kerrors.Error
	if errors.As(err, &se) {
		return se
	}
	return pkgerrors.NewInternalServerError(msg)
}

package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func Accepted(c *gin.Context) {
	c.JSON(http.StatusAccepted, Response{Success: true})
}

// Error отвечает кодом AppError; всё остальное маскируется как внутренняя ошибка.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		fail(c, appErr.HTTPStatus, appErr.Code, appErr.Message)
		return
	}
	fail(c, http.StatusInternalServerError, apperror.ErrCodeInternal, "внутренняя ошибка сервера")
}

func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, apperror.ErrCodeBadRequest, message)
}

func NotFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, apperror.ErrCodeNotFound, message)
}

func Unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, apperror.ErrCodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	fail(c, http.StatusForbidden, apperror.ErrCodeForbidden, message)
}

func TooManyRequests(c *gin.Context, message string) {
	fail(c, http.StatusTooManyRequests, apperror.ErrCodeRateLimited, message)
}

func fail(c *gin.Context, status int, code apperror.ErrorCode, message string) {
	c.JSON(status, Response{
		Success: false,
		Error:   &ErrorInfo{Code: string(code), Message: message},
	})
}

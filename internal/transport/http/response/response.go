package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"webinfinitygen/internal/apperr"
)

type APIResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Pagination any    `json:"pagination,omitempty"`
}

func OK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Message: message, Data: data})
}

func Page(c *gin.Context, message string, data, pagination any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: message, Data: data, Pagination: pagination})
}

func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, APIResponse{Success: false, Message: message})
}

// FromError writes the status that matches err's category. Internal errors
// are reported with fallback instead of their text.
func FromError(c *gin.Context, err error, fallback string) {
	status := StatusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = fallback
	}
	if status == http.StatusServiceUnavailable {
		message = apperr.ErrStorageUnavailable.Error()
	}
	Error(c, status, message)
}

func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

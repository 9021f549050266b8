package handlers

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/office_hours/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	CodeInvalidRange     = "INVALID_RANGE"
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeSlotUnavailable  = "SLOT_UNAVAILABLE"
	CodeAlreadyCancelled = "ALREADY_CANCELLED"
	CodeForbidden        = "FORBIDDEN"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// errorStatus сопоставляет ошибку сервиса с HTTP статусом и кодом
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRange):
		return http.StatusBadRequest, CodeInvalidRange, err.Error()
	case errors.Is(err, service.ErrNotAProfessor):
		return http.StatusNotFound, CodeNotFound, "professor not found"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "appointment not found"
	case errors.Is(err, service.ErrSlotUnavailable):
		return http.StatusConflict, CodeSlotUnavailable, "time slot not available"
	case errors.Is(err, service.ErrAlreadyCancelled):
		return http.StatusConflict, CodeAlreadyCancelled, "appointment already cancelled"
	case errors.Is(err, service.ErrNotAuthorized):
		return http.StatusForbidden, CodeForbidden, "not authorized to perform this action"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, CodeConflict, "email already registered"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeUnauthorized, "invalid email or password"
	default:
		return http.StatusInternalServerError, CodeInternal, "an unexpected error occurred"
	}
}

// respondError пишет ошибку в ответ. Неожиданные ошибки логируются
func (h *Handlers) respondError(c *gin.Context, err error) {
	status, code, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message})
}

// respondBindError отвечает на ошибку разбора тела запроса
func respondBindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make(map[string]any, len(validationErrs))
		for _, fe := range validationErrs {
			details[fe.Field()] = fe.Tag()
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Code:    CodeValidation,
			Message: "request validation failed",
			Details: details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Code:    CodeValidation,
		Message: "malformed request body",
	})
}

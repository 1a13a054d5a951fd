package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/apperr"
	"esign-backend/internal/shared/telemetry"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, fields []apperr.FieldError) {
	logFields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		logFields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", logFields)
	} else {
		telemetry.Warn("http.error", logFields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Message: message,
		Code:    code,
		Errors:  fields,
	})
}

// Fail reports err using its apperr kind. Unclassified errors become a
// generic 500 and their text is only logged.
func Fail(c *gin.Context, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		c.Set("internalError", err.Error())
		telemetry.Error("http.internal", map[string]any{
			"error":      err,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString("requestId"),
		})
		Error(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
		return
	}
	code := ae.Code
	if code == "" {
		code = string(ae.Kind)
	}
	Error(c, StatusFor(ae.Kind), code, ae.Message, ae.Fields)
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindStateConflict:
		return http.StatusConflict
	case apperr.KindExpiry:
		return http.StatusGone
	case apperr.KindUnsupportedPayload:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/apperr"
)

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload interface{}) {
	JSON(c, http.StatusOK, payload)
}

// Message writes {"message": msg} with the given status.
func Message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

// BindJSON decodes the request body into dst, reporting malformed JSON as
// a validation error.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		Fail(c, apperr.Field("body", "must be valid JSON"))
		return false
	}
	return true
}

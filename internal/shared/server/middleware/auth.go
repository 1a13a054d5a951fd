package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/apperr"
	"esign-backend/internal/shared/auth"
	"esign-backend/internal/shared/identity"
	"esign-backend/internal/shared/server/respond"
)

const (
	userIDKey      = "userId"
	userEmailKey   = "userEmail"
	userNameKey    = "userName"
	userPictureKey = "userPicture"
)

var errMissingToken = apperr.New(apperr.KindAuthentication, "unauthorized", "Missing or invalid token")

// Auth requires a Bearer session token and stores the caller in context.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			respond.Fail(c, errMissingToken)
			return
		}

		claims, err := auth.VerifyJWT(token)
		if err != nil {
			respond.Fail(c, errMissingToken)
			return
		}

		c.Set(userIDKey, claims.Subject)
		if claims.Email != "" {
			c.Set(userEmailKey, claims.Email)
		}
		if claims.Name != "" {
			c.Set(userNameKey, claims.Name)
		}
		if claims.Picture != "" {
			c.Set(userPictureKey, claims.Picture)
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// IdentityFromContext returns the caller attached by Auth.
func IdentityFromContext(c *gin.Context) identity.Identity {
	return identity.Identity{
		UserID: UserIDFromContext(c),
		Email:  UserEmailFromContext(c),
		Name:   UserNameFromContext(c),
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	return stringFromContext(c, userIDKey)
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	return stringFromContext(c, userEmailKey)
}

// UserNameFromContext fetches the user name set by the auth middleware.
func UserNameFromContext(c *gin.Context) string {
	return stringFromContext(c, userNameKey)
}

// UserPictureFromContext fetches the user picture set by the auth middleware.
func UserPictureFromContext(c *gin.Context) string {
	return stringFromContext(c, userPictureKey)
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

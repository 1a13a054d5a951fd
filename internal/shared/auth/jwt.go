package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL bounds the lifetime of session tokens.
const SessionTTL = 24 * time.Hour

// Claims represents the identity contained in a session JWT.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

var (
	errMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// SignJWT signs the given claims with HS256 using the configured secret.
func SignJWT(claims Claims) (string, error) {
	secret, err := SecretKey()
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("sub is required")
	}

	now := time.Now().UTC()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(SessionTTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyJWT verifies a token and returns its claims.
func VerifyJWT(token string) (Claims, error) {
	secret, err := SecretKey()
	if err != nil {
		return Claims{}, err
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// SecretKey returns the session signing secret. Production refuses to fall
// back to the development default.
func SecretKey() ([]byte, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENV")))
	if env == "production" || env == "prod" {
		if secret == "" {
			return nil, fmt.Errorf("%w: JWT_SECRET required in production", errMissingSecret)
		}
	}
	if secret == "" {
		secret = "dev-secret"
	}
	return []byte(secret), nil
}

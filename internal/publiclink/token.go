// Package publiclink lets a signer without an account complete exactly one
// signature request. A link carries an HS256 token bound to a document and
// an email; the token is also stored on the request row so both the
// token's own expiry and the row's expiry must hold.
package publiclink

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"esign-backend/internal/shared/apperr"
	"esign-backend/internal/shared/ids"
)

const (
	// Purpose is the only purpose claim accepted by Parse.
	Purpose = "public-sign"
	// DefaultTTL bounds a token's validity.
	DefaultTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidToken = apperr.New(apperr.KindAuthentication, "invalid_token", "Invalid or expired signing link")
	ErrTokenExpired = apperr.New(apperr.KindExpiry, "token_expired", "Signing link has expired")
	ErrLinkExpired  = apperr.New(apperr.KindExpiry, "link_expired", "Signing link is no longer valid for this request")
)

// Claims binds a token to one document and signer email.
type Claims struct {
	DocumentID string `json:"documentId"`
	Email      string `json:"email"`
	Purpose    string `json:"purpose"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies public signing tokens.
type Issuer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// NewIssuer returns an issuer with the default TTL.
func NewIssuer(secret string) *Issuer {
	return &Issuer{Secret: []byte(secret), TTL: DefaultTTL}
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now().UTC()
	}
	return time.Now().UTC()
}

func (i *Issuer) ttl() time.Duration {
	if i.TTL > 0 {
		return i.TTL
	}
	return DefaultTTL
}

// Mint signs a token for (documentID, email) and returns it with its expiry.
func (i *Issuer) Mint(documentID, email string) (string, time.Time, error) {
	if len(i.Secret) == 0 {
		return "", time.Time{}, errors.New("public link secret not configured")
	}
	now := i.now().Truncate(time.Second)
	expiresAt := now.Add(i.ttl())
	claims := Claims{
		DocumentID: documentID,
		Email:      email,
		Purpose:    Purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ids.At(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Parse verifies a token's signature, expiry and purpose.
func (i *Issuer) Parse(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(i.Secret) == 0 {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}
	if claims.Purpose != Purpose || claims.DocumentID == "" || claims.Email == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

package users

import (
	"context"

	"esign-backend/internal/shared/apperr"
)

var ErrNotFound = apperr.New(apperr.KindNotFound, "user_not_found", "User not found")

// Repo persists users. Upsert keeps the original CreatedAt and bumps
// LastLoginAt.
type Repo interface {
	Upsert(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
}

package users

import (
	"context"
	"errors"
	"strings"

	"esign-backend/internal/shared/apperr"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/shared/util"
)

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// UpsertFromAuth records a successful sign-in.
func (s *Service) UpsertFromAuth(ctx context.Context, user User) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	user.ID = strings.TrimSpace(user.ID)
	user.Email = util.NormalizeEmail(user.Email)
	if user.ID == "" {
		return User{}, apperr.Field("id", "is required")
	}
	if user.Email == "" {
		return User{}, apperr.Field("email", "is required")
	}
	stored, err := s.Repo.Upsert(ctx, user)
	if err != nil {
		return User{}, err
	}
	telemetry.Info("user.login", map[string]any{
		"user_id":  stored.ID,
		"provider": stored.Provider,
	})
	return stored, nil
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, apperr.ErrAuthentication
	}
	return s.Repo.GetByID(ctx, userID)
}

package users

import (
	"context"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

func (r *MemoryRepo) Upsert(ctx context.Context, user User) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := user.LastLoginAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if existing, ok := r.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.LastLoginAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

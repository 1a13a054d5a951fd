package users

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, email, name, picture_url, provider, created_at, last_login_at`

func (r *PGRepo) Upsert(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (id, email, name, picture_url, provider, created_at, last_login_at)
VALUES ($1, $2, $3, $4, $5, now(), now())
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  name = EXCLUDED.name,
  picture_url = EXCLUDED.picture_url,
  provider = EXCLUDED.provider,
  last_login_at = now()
RETURNING ` + userColumns
	return scanUser(r.DB.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		nullableString(user.PictureURL),
		user.Provider,
	))
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.DB.QueryRowContext(ctx, query, userID))
}

func scanUser(row *sql.Row) (User, error) {
	var user User
	var pictureURL sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&pictureURL,
		&user.Provider,
		&user.CreatedAt,
		&user.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.PictureURL = pictureURL.String
	return user, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

package users

import "time"

// Providers a user can sign in with.
const (
	ProviderGoogle = "google"
	ProviderDev    = "dev"
)

// User is an account that signed in at least once.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	PictureURL  string    `json:"pictureUrl,omitempty"`
	Provider    string    `json:"provider"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

package documents

import "time"

// DefaultExpiry is how long a new document stays open for signing.
const DefaultExpiry = 30 * 24 * time.Hour

// Status is the document lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusSigned    Status = "signed"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// ParseStatus validates a status name.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusDraft, StatusPending, StatusSigned, StatusCompleted, StatusExpired:
		return s, true
	}
	return "", false
}

// Document represents an uploaded PDF owned by a user.
type Document struct {
	ID               string
	OwnerID          string
	Title            string
	Description      string
	FileName         string
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
	StorageProvider  string
	StorageKey       string
	Status           Status
	ExpiresAt        time.Time
	IsPublic         bool
	Tags             []string
	PageCount        int
	ContentExcerpt   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsExpired reports whether the signing window has passed.
func (d Document) IsExpired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// OwnedBy reports whether userID owns the document.
func (d Document) OwnedBy(userID string) bool {
	return userID != "" && d.OwnerID == userID
}

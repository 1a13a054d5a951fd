// Package signatures implements the signature request lifecycle: a request
// starts pending and is resolved exactly once, to signed or rejected, by the
// signer it names. Expiry is evaluated lazily against ExpiresAt.
package signatures

import (
	"time"

	"esign-backend/internal/compose"
)

// DefaultExpiry is the signing window of a new request.
const DefaultExpiry = 7 * 24 * time.Hour

// Status is the stored lifecycle state of a request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSigned   Status = "signed"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Position locates the mark on a page in preview units. A zero width or
// height means the default box size.
type Position struct {
	X      float64 `json:"x" validate:"gte=0"`
	Y      float64 `json:"y" validate:"gte=0"`
	Page   int     `json:"page" validate:"gte=1"`
	Width  float64 `json:"width" validate:"omitempty,gt=0"`
	Height float64 `json:"height" validate:"omitempty,gt=0"`
}

// DefaultPosition is used when a request is created without one.
var DefaultPosition = Position{X: 100, Y: 100, Page: 1, Width: 200, Height: 100}

// withDefaultSize fills a missing box size from DefaultPosition.
func (p Position) withDefaultSize() Position {
	if p.Width == 0 {
		p.Width = DefaultPosition.Width
	}
	if p.Height == 0 {
		p.Height = DefaultPosition.Height
	}
	return p
}

// mergePosition lays a partial position submitted at signing time over the
// stored one. Coordinates always come from the submission; page and size
// fall back to the stored values when omitted.
func mergePosition(stored Position, submitted *Position) Position {
	if submitted == nil {
		return stored
	}
	out := stored
	out.X = submitted.X
	out.Y = submitted.Y
	if submitted.Page != 0 {
		out.Page = submitted.Page
	}
	if submitted.Width != 0 {
		out.Width = submitted.Width
	}
	if submitted.Height != 0 {
		out.Height = submitted.Height
	}
	return out.withDefaultSize()
}

// Request is one ask for one signer to mark one document.
type Request struct {
	ID                   string
	DocumentID           string
	RequestedBy          string
	SignerID             string
	Email                string
	Name                 string
	Position             Position
	Kind                 compose.Kind
	Content              string
	Status               Status
	SignedAt             *time.Time
	RejectedAt           *time.Time
	RejectionReason      string
	ExpiresAt            time.Time
	PublicToken          string
	PublicTokenExpiresAt *time.Time
	IPAddress            string
	UserAgent            string
	SigningMethod        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsExpired reports whether the signing window has closed. The window is
// open strictly before ExpiresAt, matching the conditional UPDATE.
func (r Request) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsOverdue reports a request still pending past its window.
func (r Request) IsOverdue(now time.Time) bool {
	return r.Status == StatusPending && r.IsExpired(now)
}

// PublicLinkExpired reports whether the stored public token window passed.
// A request without a token has no link to expire.
func (r Request) PublicLinkExpired(now time.Time) bool {
	return r.PublicTokenExpiresAt != nil && now.After(*r.PublicTokenExpiresAt)
}

// Transition describes the resolution of a pending request.
type Transition struct {
	To            Status
	SignerID      string
	Kind          compose.Kind
	Content       string
	Position      *Position
	Reason        string
	IPAddress     string
	UserAgent     string
	SigningMethod string
}

// signingMethod names how a mark was produced.
func signingMethod(kind compose.Kind) string {
	switch kind {
	case compose.KindDrawing:
		return "drawn"
	case compose.KindImage:
		return "uploaded"
	default:
		return "typed"
	}
}

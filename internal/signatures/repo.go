package signatures

import (
	"context"
	"time"
)

// Repo persists signature requests.
type Repo interface {
	// Create fails with ErrDuplicateRequest when the (document, email) pair
	// already has a request.
	Create(ctx context.Context, req Request) error
	GetByID(ctx context.Context, id string) (Request, error)
	GetByToken(ctx context.Context, token string) (Request, error)
	GetByDocumentEmail(ctx context.Context, documentID, email string) (Request, error)
	ListByDocument(ctx context.Context, documentID string) ([]Request, error)
	ListPendingByEmail(ctx context.Context, email string) ([]Request, error)
	CountPending(ctx context.Context, documentID string) (int, error)
	// Resolve applies t only while the request is pending and unexpired at
	// now. ok is false when that condition no longer held.
	Resolve(ctx context.Context, id string, t Transition, now time.Time) (req Request, ok bool, err error)
	// Reissue stores a fresh public token and reopens the request, clearing
	// any mark or rejection recorded earlier.
	Reissue(ctx context.Context, id, token string, tokenExpiresAt, expiresAt, now time.Time) (Request, error)
	Delete(ctx context.Context, id string) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

package documents

import (
	"context"
	"time"
)

// ListFilter narrows an owner's document listing.
type ListFilter struct {
	OwnerID string
	Status  Status // empty means any
	Search  string
	Limit   int
	Offset  int
}

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	List(ctx context.Context, f ListFilter) (docs []Document, total int, err error)
	Update(ctx context.Context, doc Document) error
	// MarkSigned sets status to signed unless it already is, reporting
	// whether the row changed.
	MarkSigned(ctx context.Context, id string, at time.Time) (bool, error)
	// MarkPending moves a draft or signed document back to pending once it
	// has an open request, reporting whether the row changed.
	MarkPending(ctx context.Context, id string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

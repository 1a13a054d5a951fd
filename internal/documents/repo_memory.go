package documents

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Document)}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = clone(doc)
	return nil
}

// GetByID returns a document by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return clone(doc), nil
}

// List returns an owner's documents newest first.
func (r *MemoryRepo) List(ctx context.Context, f ListFilter) ([]Document, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	terms := strings.Fields(strings.ToLower(f.Search))

	r.mu.RLock()
	var matched []Document
	for _, doc := range r.data {
		if doc.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && doc.Status != f.Status {
			continue
		}
		if !matchesAll(doc, terms) {
			continue
		}
		matched = append(matched, clone(doc))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Document{}, total, nil
	}
	end := total
	if f.Limit > 0 && offset+f.Limit < end {
		end = offset + f.Limit
	}
	return matched[offset:end], total, nil
}

// Update replaces the stored document.
func (r *MemoryRepo) Update(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[doc.ID]; !ok {
		return ErrNotFound
	}
	r.data[doc.ID] = clone(doc)
	return nil
}

// MarkSigned flips the document to signed once.
func (r *MemoryRepo) MarkSigned(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.transition(ctx, id, at, StatusSigned, func(s Status) bool { return s != StatusSigned })
}

// MarkPending moves a draft or signed document to pending.
func (r *MemoryRepo) MarkPending(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.transition(ctx, id, at, StatusPending, func(s Status) bool { return s == StatusDraft || s == StatusSigned })
}

func (r *MemoryRepo) transition(ctx context.Context, id string, at time.Time, to Status, allowed func(Status) bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok {
		return false, ErrNotFound
	}
	if !allowed(doc.Status) {
		return false, nil
	}
	doc.Status = to
	doc.UpdatedAt = at
	r.data[id] = doc
	return true, nil
}

// Delete removes a document.
func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

func matchesAll(doc Document, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(doc.Title + " " + doc.Description + " " + doc.ContentExcerpt + " " + strings.Join(doc.Tags, " "))
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func clone(doc Document) Document {
	doc.Tags = append([]string(nil), doc.Tags...)
	return doc
}

var _ Repo = (*MemoryRepo)(nil)

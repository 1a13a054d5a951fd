package signatures

import (
	"context"
	"sort"
	"sync"
	"time"

	"esign-backend/internal/compose"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.Mutex
	data map[string]Request
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Request)}
}

func (r *MemoryRepo) Create(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if existing.DocumentID == req.DocumentID && existing.Email == req.Email {
			return ErrDuplicateRequest
		}
	}
	r.data[req.ID] = cloneRequest(req)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Request, error) {
	return r.find(ctx, func(req Request) bool { return req.ID == id })
}

func (r *MemoryRepo) GetByToken(ctx context.Context, token string) (Request, error) {
	if token == "" {
		return Request{}, ErrRequestNotFound
	}
	return r.find(ctx, func(req Request) bool { return req.PublicToken == token })
}

func (r *MemoryRepo) GetByDocumentEmail(ctx context.Context, documentID, email string) (Request, error) {
	return r.find(ctx, func(req Request) bool { return req.DocumentID == documentID && req.Email == email })
}

func (r *MemoryRepo) ListByDocument(ctx context.Context, documentID string) ([]Request, error) {
	return r.filter(ctx, func(req Request) bool { return req.DocumentID == documentID })
}

func (r *MemoryRepo) ListPendingByEmail(ctx context.Context, email string) ([]Request, error) {
	return r.filter(ctx, func(req Request) bool { return req.Email == email && req.Status == StatusPending })
}

func (r *MemoryRepo) CountPending(ctx context.Context, documentID string) (int, error) {
	list, err := r.filter(ctx, func(req Request) bool { return req.DocumentID == documentID && req.Status == StatusPending })
	return len(list), err
}

func (r *MemoryRepo) Resolve(ctx context.Context, id string, t Transition, now time.Time) (Request, bool, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.data[id]
	if !ok {
		return Request{}, false, ErrRequestNotFound
	}
	if req.Status != StatusPending || !now.Before(req.ExpiresAt) {
		return Request{}, false, nil
	}
	applyTransition(&req, t, now)
	r.data[id] = req
	return cloneRequest(req), true, nil
}

func (r *MemoryRepo) Reissue(ctx context.Context, id, token string, tokenExpiresAt, expiresAt, now time.Time) (Request, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.data[id]
	if !ok {
		return Request{}, ErrRequestNotFound
	}
	req.PublicToken = token
	tokenExp := tokenExpiresAt
	req.PublicTokenExpiresAt = &tokenExp
	req.ExpiresAt = expiresAt
	req.Status = StatusPending
	req.SignedAt = nil
	req.RejectedAt = nil
	req.RejectionReason = ""
	req.Content = ""
	req.Kind = compose.KindText
	req.SignerID = ""
	req.SigningMethod = ""
	req.IPAddress = ""
	req.UserAgent = ""
	req.UpdatedAt = now
	r.data[id] = req
	return cloneRequest(req), nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return ErrRequestNotFound
	}
	delete(r.data, id)
	return nil
}

func (r *MemoryRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, req := range r.data {
		if req.DocumentID == documentID {
			delete(r.data, id)
		}
	}
	return nil
}

func (r *MemoryRepo) find(ctx context.Context, match func(Request) bool) (Request, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.data {
		if match(req) {
			return cloneRequest(req), nil
		}
	}
	return Request{}, ErrRequestNotFound
}

func (r *MemoryRepo) filter(ctx context.Context, match func(Request) bool) ([]Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	out := make([]Request, 0)
	for _, req := range r.data {
		if match(req) {
			out = append(out, cloneRequest(req))
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// applyTransition mutates req the same way the Postgres UPDATE does.
func applyTransition(req *Request, t Transition, now time.Time) {
	at := now
	req.Status = t.To
	if t.SignerID != "" {
		req.SignerID = t.SignerID
	}
	switch t.To {
	case StatusSigned:
		req.SignedAt = &at
		req.Kind = t.Kind
		req.Content = t.Content
		req.SigningMethod = t.SigningMethod
		if t.Position != nil {
			req.Position = *t.Position
		}
	case StatusRejected:
		req.RejectedAt = &at
		req.RejectionReason = t.Reason
	}
	req.IPAddress = t.IPAddress
	req.UserAgent = t.UserAgent
	req.UpdatedAt = now
}

func cloneRequest(req Request) Request {
	if req.SignedAt != nil {
		v := *req.SignedAt
		req.SignedAt = &v
	}
	if req.RejectedAt != nil {
		v := *req.RejectedAt
		req.RejectedAt = &v
	}
	if req.PublicTokenExpiresAt != nil {
		v := *req.PublicTokenExpiresAt
		req.PublicTokenExpiresAt = &v
	}
	return req
}

var _ Repo = (*MemoryRepo)(nil)

package signatures

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"esign-backend/internal/compose"
	"esign-backend/internal/documents"
	"esign-backend/internal/notify"
	"esign-backend/internal/shared/apperr"
	"esign-backend/internal/shared/identity"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/shared/util"
	"esign-backend/internal/shared/validate"
)

const (
	// MaxTextContent caps typed signatures, in characters.
	MaxTextContent = 500
	// MaxImageContent caps image data URIs, in bytes.
	MaxImageContent = 2 << 20

	PathAuthenticated = "authenticated"
	PathPublic        = "public"
)

// Documents is the slice of the documents service the lifecycle needs.
type Documents interface {
	Lookup(ctx context.Context, id string) (documents.Document, error)
	MarkPending(ctx context.Context, id string) (bool, error)
}

// Service runs the signature request lifecycle.
type Service struct {
	Repo      Repo
	Documents Documents
	Handlers  []EventHandler
	// Notifier, when set, tells the signer about new requests.
	Notifier notify.Notifier
	Now      func() time.Time
}

// CreateInput describes a new request.
type CreateInput struct {
	DocumentID string     `json:"documentId" validate:"required"`
	Email      string     `json:"email" validate:"required,email"`
	Name       string     `json:"name" validate:"required,min=2,max=50"`
	Position   *Position  `json:"position"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

// SignInput is the signer's mark. Clients send the mark as
// signatureContent; signature is accepted as an alias.
type SignInput struct {
	Content  string    `json:"signatureContent"`
	Alias    string    `json:"signature"`
	Kind     string    `json:"signatureType"`
	Position *Position `json:"position" validate:"-"`
}

func (in SignInput) content() string {
	if in.Content != "" {
		return in.Content
	}
	return in.Alias
}

// positionInput reports merged position failures under "position.".
type positionInput struct {
	Position Position `json:"position"`
}

// RejectInput carries an optional reason.
type RejectInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ClientMeta is recorded on every transition.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// View is a request together with its document.
type View struct {
	Request  Request
	Document documents.Document
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RequestSignature creates a pending request on a document the caller owns.
func (s *Service) RequestSignature(ctx context.Context, owner identity.Identity, in CreateInput) (Request, error) {
	in.Email = util.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return Request{}, err
	}
	doc, err := s.ownedDocument(ctx, owner, in.DocumentID)
	if err != nil {
		return Request{}, err
	}

	pos := DefaultPosition
	if in.Position != nil {
		pos = in.Position.withDefaultSize()
	}
	if err := checkPage(doc, pos); err != nil {
		return Request{}, err
	}

	now := s.now()
	expiresAt := now.Add(DefaultExpiry)
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(now) {
			return Request{}, apperr.Field("expiresAt", "must be in the future")
		}
		expiresAt = in.ExpiresAt.UTC()
	}

	req := Request{
		ID:          uuid.NewString(),
		DocumentID:  doc.ID,
		RequestedBy: owner.UserID,
		Email:       in.Email,
		Name:        in.Name,
		Position:    pos,
		Kind:        compose.KindText,
		Status:      StatusPending,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.Create(ctx, req); err != nil {
		return Request{}, err
	}
	s.markDocumentPending(ctx, doc.ID)
	s.notifySigner(ctx, doc, req)

	metrics.IncRequestsCreated()
	telemetry.Info("signature.requested", map[string]any{
		"signature_id": req.ID,
		"document_id":  doc.ID,
		"user_id":      owner.UserID,
	})
	return req, nil
}

// Get returns a request to the document owner or the intended signer.
func (s *Service) Get(ctx context.Context, caller identity.Identity, id string) (View, error) {
	req, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	doc, err := s.Documents.Lookup(ctx, req.DocumentID)
	if err != nil {
		return View{}, err
	}
	if !doc.OwnedBy(caller.UserID) && !caller.HasEmail(req.Email) {
		return View{}, ErrNotIntendedSigner
	}
	return View{Request: req, Document: doc}, nil
}

// ListByDocument returns all requests on a document the caller owns.
func (s *Service) ListByDocument(ctx context.Context, owner identity.Identity, documentID string) ([]Request, error) {
	if _, err := s.ownedDocument(ctx, owner, documentID); err != nil {
		return nil, err
	}
	return s.Repo.ListByDocument(ctx, documentID)
}

// ListPending returns the caller's outstanding requests with their documents.
// Requests whose document disappeared are skipped.
func (s *Service) ListPending(ctx context.Context, caller identity.Identity) ([]View, error) {
	if caller.Email == "" {
		return nil, apperr.ErrAuthentication
	}
	reqs, err := s.Repo.ListPendingByEmail(ctx, util.NormalizeEmail(caller.Email))
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(reqs))
	for _, req := range reqs {
		doc, err := s.Documents.Lookup(ctx, req.DocumentID)
		if err != nil {
			if errors.Is(err, documents.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, View{Request: req, Document: doc})
	}
	return out, nil
}

// Sign resolves a request to signed on behalf of its authenticated signer.
func (s *Service) Sign(ctx context.Context, caller identity.Identity, id string, in SignInput, meta ClientMeta) (Request, error) {
	return s.sign(ctx, caller, id, in, meta, PathAuthenticated)
}

// SignAs signs for the holder of a verified public token bound to email.
func (s *Service) SignAs(ctx context.Context, email, id string, in SignInput, meta ClientMeta) (Request, error) {
	return s.sign(ctx, identity.Identity{Email: email}, id, in, meta, PathPublic)
}

func (s *Service) sign(ctx context.Context, caller identity.Identity, id string, in SignInput, meta ClientMeta, path string) (Request, error) {
	if err := validate.Struct(in); err != nil {
		return Request{}, err
	}
	content := in.content()
	kind, err := checkContent(content, in.Kind)
	if err != nil {
		return Request{}, err
	}
	return s.resolve(ctx, caller, id, Transition{
		To:            StatusSigned,
		Kind:          kind,
		Content:       content,
		Position:      in.Position,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		SigningMethod: signingMethod(kind),
	}, path)
}

// Reject resolves a request to rejected. Expiry applies as it does to Sign.
func (s *Service) Reject(ctx context.Context, caller identity.Identity, id string, in RejectInput, meta ClientMeta) (Request, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := validate.Struct(in); err != nil {
		return Request{}, err
	}
	return s.resolve(ctx, caller, id, Transition{
		To:        StatusRejected,
		Reason:    in.Reason,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}, PathAuthenticated)
}

// Delete removes a request from a document the caller owns.
func (s *Service) Delete(ctx context.Context, owner identity.Identity, id string) error {
	req, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.ownedDocument(ctx, owner, req.DocumentID); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	telemetry.Info("signature.deleted", map[string]any{
		"signature_id": id,
		"document_id":  req.DocumentID,
		"user_id":      owner.UserID,
	})
	return nil
}

// DeleteByDocument drops every request on a document being deleted.
func (s *Service) DeleteByDocument(ctx context.Context, documentID string) error {
	return s.Repo.DeleteByDocument(ctx, documentID)
}

// GetByToken finds the request a public token was stored on.
func (s *Service) GetByToken(ctx context.Context, token string) (Request, error) {
	return s.Repo.GetByToken(ctx, token)
}

// AttachPublicToken binds a public token to the owner's request for email,
// creating the request at the default position when none exists. An
// existing request is reopened as pending with its window extended to the
// token's.
func (s *Service) AttachPublicToken(ctx context.Context, owner identity.Identity, documentID, email, token string, tokenExpiresAt time.Time) (Request, bool, error) {
	email = util.NormalizeEmail(email)
	doc, err := s.ownedDocument(ctx, owner, documentID)
	if err != nil {
		return Request{}, false, err
	}
	now := s.now()

	existing, err := s.Repo.GetByDocumentEmail(ctx, doc.ID, email)
	switch {
	case err == nil:
		expiresAt := existing.ExpiresAt
		if tokenExpiresAt.After(expiresAt) {
			expiresAt = tokenExpiresAt
		}
		req, err := s.Repo.Reissue(ctx, existing.ID, token, tokenExpiresAt, expiresAt, now)
		if err != nil {
			return Request{}, false, err
		}
		s.markDocumentPending(ctx, doc.ID)
		return req, false, nil
	case !errors.Is(err, ErrRequestNotFound):
		return Request{}, false, err
	}

	tokenExp := tokenExpiresAt
	req := Request{
		ID:                   uuid.NewString(),
		DocumentID:           doc.ID,
		RequestedBy:          owner.UserID,
		Email:                email,
		Name:                 nameFromEmail(email),
		Position:             DefaultPosition,
		Kind:                 compose.KindText,
		Status:               StatusPending,
		ExpiresAt:            now.Add(DefaultExpiry),
		PublicToken:          token,
		PublicTokenExpiresAt: &tokenExp,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.Repo.Create(ctx, req); err != nil {
		return Request{}, false, err
	}
	s.markDocumentPending(ctx, doc.ID)
	metrics.IncRequestsCreated()
	return req, true, nil
}

func (s *Service) resolve(ctx context.Context, caller identity.Identity, id string, t Transition, path string) (Request, error) {
	req, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !caller.HasEmail(req.Email) {
		return Request{}, ErrNotIntendedSigner
	}
	if req.Status != StatusPending {
		return Request{}, ErrNotPending
	}
	now := s.now()
	if req.IsExpired(now) {
		return Request{}, ErrRequestExpired
	}
	if t.To == StatusSigned {
		pos, err := s.signingPosition(ctx, req, t.Position)
		if err != nil {
			return Request{}, err
		}
		t.Position = &pos
	}
	t.SignerID = caller.UserID

	updated, ok, err := s.Repo.Resolve(ctx, id, t, now)
	if err != nil {
		return Request{}, err
	}
	if !ok {
		return Request{}, s.classifyStale(ctx, id)
	}

	metrics.IncTransition(string(t.To), path)
	telemetry.Info("signature.transition", map[string]any{
		"signature_id":      updated.ID,
		"document_id":       updated.DocumentID,
		"status_transition": string(StatusPending) + "->" + string(t.To),
		"path":              path,
	})
	s.dispatch(ctx, RequestResolved{
		RequestID:  updated.ID,
		DocumentID: updated.DocumentID,
		Status:     updated.Status,
		Path:       path,
		At:         now,
	})
	return updated, nil
}

// signingPosition resolves where the mark lands: the submission merged over
// the requested position, bounded by the document's page count.
func (s *Service) signingPosition(ctx context.Context, req Request, submitted *Position) (Position, error) {
	pos := mergePosition(req.Position, submitted)
	if err := validate.Struct(positionInput{Position: pos}); err != nil {
		return Position{}, err
	}
	doc, err := s.Documents.Lookup(ctx, req.DocumentID)
	if err != nil {
		return Position{}, err
	}
	if err := checkPage(doc, pos); err != nil {
		return Position{}, err
	}
	return pos, nil
}

func checkPage(doc documents.Document, pos Position) error {
	if doc.PageCount > 0 && pos.Page > doc.PageCount {
		return apperr.Field("position.page", fmt.Sprintf("must be at most %d", doc.PageCount))
	}
	return nil
}

// classifyStale explains why a conditional transition matched no row: a
// concurrent resolution or the window closing between read and write.
func (s *Service) classifyStale(ctx context.Context, id string) error {
	cur, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if cur.Status != StatusPending {
		return ErrNotPending
	}
	return ErrRequestExpired
}

// dispatch runs event handlers after the transition committed. Handler
// failures are logged; the signer's transition stands.
func (s *Service) dispatch(ctx context.Context, ev RequestResolved) {
	for _, h := range s.Handlers {
		if err := h.HandleRequestResolved(ctx, ev); err != nil {
			telemetry.Error("signature.event_failed", map[string]any{
				"signature_id": ev.RequestID,
				"document_id":  ev.DocumentID,
				"error":        err,
			})
		}
	}
}

func (s *Service) ownedDocument(ctx context.Context, owner identity.Identity, documentID string) (documents.Document, error) {
	if owner.UserID == "" {
		return documents.Document{}, apperr.ErrAuthentication
	}
	doc, err := s.Documents.Lookup(ctx, documentID)
	if err != nil {
		return documents.Document{}, err
	}
	if !doc.OwnedBy(owner.UserID) {
		return documents.Document{}, ErrNotOwner
	}
	return doc, nil
}

func (s *Service) markDocumentPending(ctx context.Context, documentID string) {
	if _, err := s.Documents.MarkPending(ctx, documentID); err != nil {
		telemetry.Warn("document.mark_pending_failed", map[string]any{
			"document_id": documentID,
			"error":       err,
		})
	}
}

func (s *Service) notifySigner(ctx context.Context, doc documents.Document, req Request) {
	if s.Notifier == nil {
		return
	}
	err := s.Notifier.Notify(ctx, notify.Notification{
		Kind:          notify.KindSignatureRequested,
		Recipient:     req.Email,
		RecipientName: req.Name,
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		telemetry.Warn("signature.notify_failed", map[string]any{
			"signature_id": req.ID,
			"document_id":  doc.ID,
			"error":        err,
		})
	}
}

// checkContent validates the mark against its kind. An empty kind means text.
func checkContent(content, rawKind string) (compose.Kind, error) {
	kind := compose.KindText
	if strings.TrimSpace(rawKind) != "" {
		parsed, err := compose.ParseKind(rawKind)
		if err != nil {
			return "", err
		}
		kind = parsed
	}
	if !kind.IsImage() {
		n := util.RuneLen(strings.TrimSpace(content))
		if n == 0 {
			return "", apperr.Field("signatureContent", "is required")
		}
		if n > MaxTextContent {
			return "", apperr.Field("signatureContent", fmt.Sprintf("must be at most %d characters", MaxTextContent))
		}
		return kind, nil
	}
	if len(content) > MaxImageContent {
		return "", ErrContentTooLarge
	}
	if _, err := compose.DecodeDataURI(content); err != nil {
		return "", err
	}
	return kind, nil
}

func nameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

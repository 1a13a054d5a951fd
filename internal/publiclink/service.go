package publiclink

import (
	"context"
	"net/url"
	"strings"
	"time"

	"esign-backend/internal/documents"
	"esign-backend/internal/notify"
	"esign-backend/internal/shared/identity"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/shared/util"
	"esign-backend/internal/shared/validate"
	"esign-backend/internal/signatures"
)

// Signatures is the slice of the lifecycle service public links use.
type Signatures interface {
	AttachPublicToken(ctx context.Context, owner identity.Identity, documentID, email, token string, tokenExpiresAt time.Time) (signatures.Request, bool, error)
	GetByToken(ctx context.Context, token string) (signatures.Request, error)
	SignAs(ctx context.Context, email, id string, in signatures.SignInput, meta signatures.ClientMeta) (signatures.Request, error)
}

// Documents resolves the document a link points at.
type Documents interface {
	Lookup(ctx context.Context, id string) (documents.Document, error)
}

// Service issues and redeems public signing links.
type Service struct {
	Tokens     *Issuer
	Signatures Signatures
	Documents  Documents
	Notifier   notify.Notifier
	BaseURL    string
	Now        func() time.Time
}

// IssueInput names the document and the signer to invite.
type IssueInput struct {
	DocumentID string `json:"documentId" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
}

// Issued is a freshly minted link and the request it is bound to.
type Issued struct {
	Token     string
	Link      string
	ExpiresAt time.Time
	Request   signatures.Request
	Created   bool
}

// Validated is what a token holder is allowed to see before signing.
type Validated struct {
	Document documents.Document
	Email    string
	Request  signatures.Request
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Issue mints a link for in.Email on a document the owner holds. The signer
// notification is best-effort.
func (s *Service) Issue(ctx context.Context, owner identity.Identity, in IssueInput) (Issued, error) {
	in.Email = util.NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return Issued{}, err
	}
	doc, err := s.Documents.Lookup(ctx, in.DocumentID)
	if err != nil {
		return Issued{}, err
	}
	if !doc.OwnedBy(owner.UserID) {
		return Issued{}, signatures.ErrNotOwner
	}

	token, expiresAt, err := s.Tokens.Mint(doc.ID, in.Email)
	if err != nil {
		return Issued{}, err
	}
	req, created, err := s.Signatures.AttachPublicToken(ctx, owner, doc.ID, in.Email, token, expiresAt)
	if err != nil {
		return Issued{}, err
	}
	link := BuildLink(s.BaseURL, token)

	if s.Notifier != nil {
		err := s.Notifier.Notify(ctx, notify.Notification{
			Kind:          notify.KindPublicLink,
			Recipient:     req.Email,
			RecipientName: req.Name,
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			Link:          link,
			ExpiresAt:     expiresAt,
		})
		if err != nil {
			telemetry.Warn("public_link.notify_failed", map[string]any{
				"signature_id": req.ID,
				"document_id":  doc.ID,
				"error":        err,
			})
		}
	}

	metrics.IncPublicLinks()
	telemetry.Info("public_link.issued", map[string]any{
		"signature_id": req.ID,
		"document_id":  doc.ID,
		"user_id":      owner.UserID,
		"created":      created,
	})
	return Issued{Token: token, Link: link, ExpiresAt: expiresAt, Request: req, Created: created}, nil
}

// Validate checks the token and the request it is stored on.
func (s *Service) Validate(ctx context.Context, token string) (Validated, error) {
	token = strings.TrimSpace(token)
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return Validated{}, err
	}
	req, err := s.Signatures.GetByToken(ctx, token)
	if err != nil {
		return Validated{}, err
	}
	if req.DocumentID != claims.DocumentID || !strings.EqualFold(req.Email, claims.Email) {
		return Validated{}, ErrInvalidToken
	}
	now := s.now()
	if req.Status != signatures.StatusPending {
		return Validated{}, signatures.ErrNotPending
	}
	if req.PublicLinkExpired(now) {
		return Validated{}, ErrLinkExpired
	}
	if req.IsExpired(now) {
		return Validated{}, signatures.ErrRequestExpired
	}
	doc, err := s.Documents.Lookup(ctx, req.DocumentID)
	if err != nil {
		return Validated{}, err
	}
	return Validated{Document: doc, Email: req.Email, Request: req}, nil
}

// PublicSign signs the request bound to token as the token's email.
func (s *Service) PublicSign(ctx context.Context, token string, in signatures.SignInput, meta signatures.ClientMeta) (signatures.Request, error) {
	v, err := s.Validate(ctx, token)
	if err != nil {
		return signatures.Request{}, err
	}
	return s.Signatures.SignAs(ctx, v.Email, v.Request.ID, in, meta)
}

// BuildLink appends token to base as the token query parameter, keeping any
// query base already has.
func BuildLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

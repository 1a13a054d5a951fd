package signatures

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"esign-backend/internal/compose"
	"esign-backend/internal/shared/storage/db"
)

const documentEmailConstraint = "signature_requests_document_email_key"

const requestColumns = `id, document_id, requested_by, signer_id, email, name,
    position_x, position_y, position_page, position_width, position_height,
    kind, content, status, signed_at, rejected_at, rejection_reason, expires_at,
    public_token, public_token_expires_at, ip_address, user_agent, signing_method,
    created_at, updated_at`

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, req Request) error {
	const query = `
INSERT INTO signature_requests (
    id,
    document_id,
    requested_by,
    signer_id,
    email,
    name,
    position_x,
    position_y,
    position_page,
    position_width,
    position_height,
    kind,
    status,
    expires_at,
    public_token,
    public_token_expires_at,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	kind := req.Kind
	if kind == "" {
		kind = compose.KindText
	}
	_, err := r.DB.ExecContext(
		ctx,
		query,
		req.ID,
		req.DocumentID,
		req.RequestedBy,
		nullString(req.SignerID),
		req.Email,
		req.Name,
		req.Position.X,
		req.Position.Y,
		req.Position.Page,
		req.Position.Width,
		req.Position.Height,
		string(kind),
		string(req.Status),
		req.ExpiresAt,
		nullString(req.PublicToken),
		nullTime(req.PublicTokenExpiresAt),
		req.CreatedAt,
		req.UpdatedAt,
	)
	if db.IsUniqueViolation(err, documentEmailConstraint) {
		return ErrDuplicateRequest
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Request, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *PGRepo) GetByToken(ctx context.Context, token string) (Request, error) {
	if token == "" {
		return Request{}, ErrRequestNotFound
	}
	return r.getOne(ctx, `WHERE public_token = $1`, token)
}

func (r *PGRepo) GetByDocumentEmail(ctx context.Context, documentID, email string) (Request, error) {
	return r.getOne(ctx, `WHERE document_id = $1 AND email = $2`, documentID, email)
}

func (r *PGRepo) ListByDocument(ctx context.Context, documentID string) ([]Request, error) {
	return r.list(ctx, `WHERE document_id = $1`, documentID)
}

func (r *PGRepo) ListPendingByEmail(ctx context.Context, email string) ([]Request, error) {
	return r.list(ctx, `WHERE email = $1 AND status = 'pending'`, email)
}

func (r *PGRepo) CountPending(ctx context.Context, documentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM signature_requests WHERE document_id = $1 AND status = 'pending'`
	var n int
	if err := r.DB.QueryRowContext(ctx, query, documentID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Resolve is a single conditional UPDATE, so of two racing submissions only
// one matches the pending row.
func (r *PGRepo) Resolve(ctx context.Context, id string, t Transition, now time.Time) (Request, bool, error) {
	query := `
UPDATE signature_requests
SET status = $2,
    signer_id = COALESCE($3, signer_id),
    kind = COALESCE($4, kind),
    content = CASE WHEN $2 = 'signed' THEN $5 ELSE content END,
    position_x = COALESCE($6, position_x),
    position_y = COALESCE($7, position_y),
    position_page = COALESCE($8, position_page),
    position_width = COALESCE($9, position_width),
    position_height = COALESCE($10, position_height),
    signed_at = CASE WHEN $2 = 'signed' THEN $11 ELSE signed_at END,
    rejected_at = CASE WHEN $2 = 'rejected' THEN $11 ELSE rejected_at END,
    rejection_reason = CASE WHEN $2 = 'rejected' THEN $12 ELSE rejection_reason END,
    ip_address = $13,
    user_agent = $14,
    signing_method = COALESCE($15, signing_method),
    updated_at = $11
WHERE id = $1 AND status = 'pending' AND expires_at > $11
RETURNING ` + requestColumns

	var x, y, width, height sql.NullFloat64
	var page sql.NullInt64
	if p := t.Position; p != nil {
		x = sql.NullFloat64{Float64: p.X, Valid: true}
		y = sql.NullFloat64{Float64: p.Y, Valid: true}
		page = sql.NullInt64{Int64: int64(p.Page), Valid: true}
		width = sql.NullFloat64{Float64: p.Width, Valid: true}
		height = sql.NullFloat64{Float64: p.Height, Valid: true}
	}

	req, err := scanRequest(r.DB.QueryRowContext(
		ctx,
		query,
		id,
		string(t.To),
		nullString(t.SignerID),
		nullString(string(t.Kind)),
		t.Content,
		x,
		y,
		page,
		width,
		height,
		now,
		nullString(t.Reason),
		nullString(t.IPAddress),
		nullString(t.UserAgent),
		nullString(t.SigningMethod),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return Request{}, false, getErr
			}
			return Request{}, false, nil
		}
		return Request{}, false, err
	}
	return req, true, nil
}

func (r *PGRepo) Reissue(ctx context.Context, id, token string, tokenExpiresAt, expiresAt, now time.Time) (Request, error) {
	query := `
UPDATE signature_requests
SET public_token = $2,
    public_token_expires_at = $3,
    expires_at = $4,
    status = 'pending',
    signed_at = NULL,
    rejected_at = NULL,
    rejection_reason = NULL,
    content = '',
    kind = 'text',
    signer_id = NULL,
    signing_method = NULL,
    ip_address = NULL,
    user_agent = NULL,
    updated_at = $5
WHERE id = $1
RETURNING ` + requestColumns
	req, err := scanRequest(r.DB.QueryRowContext(ctx, query, id, token, tokenExpiresAt, expiresAt, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, err
	}
	return req, nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM signature_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *PGRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM signature_requests WHERE document_id = $1`, documentID)
	return err
}

func (r *PGRepo) getOne(ctx context.Context, where string, args ...any) (Request, error) {
	query := `SELECT ` + requestColumns + ` FROM signature_requests ` + where + ` LIMIT 1`
	req, err := scanRequest(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, err
	}
	return req, nil
}

func (r *PGRepo) list(ctx context.Context, where string, args ...any) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM signature_requests ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var req Request
	var kind, status string
	var signerID, reason, token, ip, ua, method sql.NullString
	var signedAt, rejectedAt, tokenExpiresAt sql.NullTime
	err := row.Scan(
		&req.ID,
		&req.DocumentID,
		&req.RequestedBy,
		&signerID,
		&req.Email,
		&req.Name,
		&req.Position.X,
		&req.Position.Y,
		&req.Position.Page,
		&req.Position.Width,
		&req.Position.Height,
		&kind,
		&req.Content,
		&status,
		&signedAt,
		&rejectedAt,
		&reason,
		&req.ExpiresAt,
		&token,
		&tokenExpiresAt,
		&ip,
		&ua,
		&method,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return Request{}, err
	}
	req.Kind = compose.Kind(kind)
	req.Status = Status(status)
	req.SignerID = signerID.String
	req.RejectionReason = reason.String
	req.PublicToken = token.String
	req.IPAddress = ip.String
	req.UserAgent = ua.String
	req.SigningMethod = method.String
	if signedAt.Valid {
		req.SignedAt = &signedAt.Time
	}
	if rejectedAt.Valid {
		req.RejectedAt = &rejectedAt.Time
	}
	if tokenExpiresAt.Valid {
		req.PublicTokenExpiresAt = &tokenExpiresAt.Time
	}
	return req, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Repo = (*PGRepo)(nil)

package documents

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"esign-backend/internal/shared/util"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Tags never contain commas (util.SplitTags splits on them), so the array
// travels as a joined string and is rebuilt server side.
const documentColumns = `id, owner_id, title, description, file_name, original_filename, mime_type, size_bytes,
    storage_provider, storage_key, status, expires_at, is_public, COALESCE(array_to_string(tags, ','), ''),
    page_count, content_excerpt, created_at, updated_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    owner_id,
    title,
    description,
    file_name,
    original_filename,
    mime_type,
    size_bytes,
    storage_provider,
    storage_key,
    status,
    expires_at,
    is_public,
    tags,
    page_count,
    content_excerpt,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, string_to_array($14, ','), $15, $16, $17, $18)`

	originalName := doc.OriginalFilename
	if originalName == "" {
		originalName = doc.FileName
	}
	storageProvider := doc.StorageProvider
	if storageProvider == "" {
		storageProvider = "local"
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.OwnerID,
		doc.Title,
		doc.Description,
		doc.FileName,
		originalName,
		doc.MimeType,
		doc.SizeBytes,
		storageProvider,
		doc.StorageKey,
		string(doc.Status),
		doc.ExpiresAt,
		doc.IsPublic,
		strings.Join(doc.Tags, ","),
		doc.PageCount,
		doc.ContentExcerpt,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

// GetByID fetches a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE id = $1
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List returns an owner's documents newest first with the unpaged total.
func (r *PGRepo) List(ctx context.Context, f ListFilter) ([]Document, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	const where = `
WHERE owner_id = $1
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR to_tsvector('simple', title || ' ' || description || ' ' || content_excerpt) @@ plainto_tsquery('simple', $3))`

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`+where, f.OwnerID, string(f.Status), f.Search).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + documentColumns + `
FROM documents` + where + `
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5`
	rows, err := r.DB.QueryContext(ctx, query, f.OwnerID, string(f.Status), f.Search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Update writes every mutable column of doc.
func (r *PGRepo) Update(ctx context.Context, doc Document) error {
	const query = `
UPDATE documents
SET title = $2,
    description = $3,
    file_name = $4,
    original_filename = $5,
    mime_type = $6,
    size_bytes = $7,
    storage_provider = $8,
    storage_key = $9,
    status = $10,
    is_public = $11,
    tags = string_to_array($12, ','),
    page_count = $13,
    content_excerpt = $14,
    updated_at = $15
WHERE id = $1`
	res, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.Title,
		doc.Description,
		doc.FileName,
		doc.OriginalFilename,
		doc.MimeType,
		doc.SizeBytes,
		doc.StorageProvider,
		doc.StorageKey,
		string(doc.Status),
		doc.IsPublic,
		strings.Join(doc.Tags, ","),
		doc.PageCount,
		doc.ContentExcerpt,
		doc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkSigned flips the document to signed once.
func (r *PGRepo) MarkSigned(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
UPDATE documents
SET status = 'signed', updated_at = $2
WHERE id = $1 AND status <> 'signed'`
	return r.transition(ctx, query, id, at)
}

// MarkPending moves a draft or signed document to pending.
func (r *PGRepo) MarkPending(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
UPDATE documents
SET status = 'pending', updated_at = $2
WHERE id = $1 AND status IN ('draft', 'signed')`
	return r.transition(ctx, query, id, at)
}

func (r *PGRepo) transition(ctx context.Context, query, id string, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a document; signature requests follow via ON DELETE CASCADE.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var status string
	var tags string
	err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.Title,
		&doc.Description,
		&doc.FileName,
		&doc.OriginalFilename,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StorageProvider,
		&doc.StorageKey,
		&status,
		&doc.ExpiresAt,
		&doc.IsPublic,
		&tags,
		&doc.PageCount,
		&doc.ContentExcerpt,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	doc.Status = Status(status)
	doc.Tags = util.SplitTags(tags)
	return doc, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)

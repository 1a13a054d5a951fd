package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"esign-backend/internal/compose"
	"esign-backend/internal/extract"
	"esign-backend/internal/placement"
	"esign-backend/internal/shared/apperr"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/identity"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/storage/object"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/shared/util"
	"esign-backend/internal/shared/validate"
)

const (
	mimePDF = "application/pdf"

	defaultPageSize = 10
	maxPageSize     = 100
	downloadURLTTL  = 5 * time.Minute
)

// DependentCleaner removes records that reference a document.
type DependentCleaner interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Service contains business logic for documents.
type Service struct {
	Store           object.ObjectStore
	Repo            Repo
	StorageProvider string
	MaxUploadBytes  int64
	Composer        *compose.Composer
	Dependents      DependentCleaner
	Now             func() time.Time
}

// UploadInput carries the form fields of an upload.
type UploadInput struct {
	Title       string    `json:"title" validate:"required,max=100"`
	Description string    `json:"description" validate:"max=500"`
	Tags        string    `json:"tags"`
	FileName    string    `json:"file"`
	Body        io.Reader `json:"-"`
}

// ListQuery pages through an owner's documents.
type ListQuery struct {
	Page   int
	Limit  int
	Status string
	Search string
}

// ListResult is one page of documents.
type ListResult struct {
	Documents  []Document
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// UpdateInput holds optional metadata changes.
type UpdateInput struct {
	Title       *string  `json:"title" validate:"omitnil,min=1,max=100"`
	Description *string  `json:"description" validate:"omitnil,max=500"`
	Status      *string  `json:"status" validate:"omitnil,oneof=draft pending completed expired"`
	IsPublic    *bool    `json:"isPublic"`
	Tags        *TagList `json:"tags"`
}

// ComposeInput positions one mark on a page of the stored PDF. Position
// is in preview pixels with a top-left origin.
type ComposeInput struct {
	Page      int             `json:"page" validate:"gte=1"`
	Preview   placement.Size  `json:"preview"`
	Position  placement.Point `json:"position"`
	Signature SignatureInput  `json:"signature"`
	Apply     bool            `json:"apply"`
}

// SignatureInput is the mark drawn by Compose.
type SignatureInput struct {
	Kind     string  `json:"kind" validate:"required"`
	Value    string  `json:"value" validate:"required"`
	Font     string  `json:"font"`
	FontSize float64 `json:"fontSize" validate:"gte=0,lte=96"`
}

// ComposeResult holds the rendered PDF.
type ComposeResult struct {
	PDF      []byte
	Document Document
	Applied  bool
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) uploadLimit() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return config.DefaultMaxUploadBytes
}

// Upload validates the PDF, stores the blob and records the document.
func (s *Service) Upload(ctx context.Context, owner identity.Identity, in UploadInput) (Document, error) {
	if owner.UserID == "" {
		return Document{}, apperr.ErrAuthentication
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validate.Struct(in); err != nil {
		return Document{}, err
	}
	if in.Body == nil || strings.TrimSpace(in.FileName) == "" {
		return Document{}, ErrFileRequired
	}

	data, err := s.readPDF(in.Body)
	if err != nil {
		return Document{}, err
	}
	summary := s.inspect(ctx, data)

	storageKey, size, _, err := s.Store.Save(ctx, owner.UserID, in.FileName, bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("save blob: %w", err)
	}

	now := s.now()
	doc := Document{
		ID:               uuid.NewString(),
		OwnerID:          owner.UserID,
		Title:            in.Title,
		Description:      in.Description,
		FileName:         storageFileName(storageKey, in.FileName),
		OriginalFilename: in.FileName,
		MimeType:         mimePDF,
		SizeBytes:        size,
		StorageProvider:  s.provider(),
		StorageKey:       storageKey,
		Status:           StatusDraft,
		ExpiresAt:        now.Add(DefaultExpiry),
		Tags:             util.SplitTags(in.Tags),
		PageCount:        summary.PageCount,
		ContentExcerpt:   summary.Excerpt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		s.deleteBlob(ctx, storageKey)
		return Document{}, err
	}

	metrics.IncDocumentsUploaded()
	telemetry.Info("document.uploaded", map[string]any{
		"document_id": doc.ID,
		"user_id":     owner.UserID,
		"size_bytes":  size,
		"page_count":  doc.PageCount,
	})
	return doc, nil
}

// List returns one page of the caller's documents.
func (s *Service) List(ctx context.Context, owner identity.Identity, q ListQuery) (ListResult, error) {
	if owner.UserID == "" {
		return ListResult{}, apperr.ErrAuthentication
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var status Status
	if raw := strings.TrimSpace(q.Status); raw != "" && raw != "all" {
		parsed, ok := ParseStatus(raw)
		if !ok {
			return ListResult{}, ErrBadStatus
		}
		status = parsed
	}

	docs, total, err := s.Repo.List(ctx, ListFilter{
		OwnerID: owner.UserID,
		Status:  status,
		Search:  strings.TrimSpace(q.Search),
		Limit:   limit,
		Offset:  (page - 1) * limit,
	})
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{
		Documents:  docs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// Get returns a document the caller owns or that has been made public.
func (s *Service) Get(ctx context.Context, caller identity.Identity, id string) (Document, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if !doc.OwnedBy(caller.UserID) && !doc.IsPublic {
		return Document{}, ErrNotOwner
	}
	return doc, nil
}

// Lookup fetches a document without an ownership check. It is meant for
// collaborating services that enforce their own access rules.
func (s *Service) Lookup(ctx context.Context, id string) (Document, error) {
	return s.Repo.GetByID(ctx, id)
}

// Update applies metadata changes made by the owner.
func (s *Service) Update(ctx context.Context, owner identity.Identity, id string, in UpdateInput) (Document, error) {
	if err := validate.Struct(in); err != nil {
		return Document{}, err
	}
	doc, err := s.owned(ctx, owner, id)
	if err != nil {
		return Document{}, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return Document{}, apperr.Field("title", "is required")
		}
		doc.Title = title
	}
	if in.Description != nil {
		doc.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		doc.Status = Status(*in.Status)
	}
	if in.IsPublic != nil {
		doc.IsPublic = *in.IsPublic
	}
	if in.Tags != nil {
		doc.Tags = []string(*in.Tags)
	}
	doc.UpdatedAt = s.now()

	if err := s.Repo.Update(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Delete removes the document, its signature requests and its blob.
func (s *Service) Delete(ctx context.Context, owner identity.Identity, id string) error {
	doc, err := s.owned(ctx, owner, id)
	if err != nil {
		return err
	}
	if s.Dependents != nil {
		if err := s.Dependents.DeleteByDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete signature requests: %w", err)
		}
	}
	if err := s.Repo.Delete(ctx, doc.ID); err != nil {
		return err
	}
	s.deleteBlob(ctx, doc.StorageKey)
	telemetry.Info("document.deleted", map[string]any{
		"document_id": doc.ID,
		"user_id":     owner.UserID,
	})
	return nil
}

// ReplaceFile swaps in an externally signed PDF and marks the document
// signed.
func (s *Service) ReplaceFile(ctx context.Context, owner identity.Identity, id, fileName string, body io.Reader) (Document, error) {
	doc, err := s.owned(ctx, owner, id)
	if err != nil {
		return Document{}, err
	}
	if body == nil || strings.TrimSpace(fileName) == "" {
		return Document{}, ErrFileRequired
	}
	data, err := s.readPDF(body)
	if err != nil {
		return Document{}, err
	}
	doc, err = s.storeRevision(ctx, doc, fileName, data, StatusSigned)
	if err != nil {
		return Document{}, err
	}
	telemetry.Info("document.file_replaced", map[string]any{
		"document_id": doc.ID,
		"user_id":     owner.UserID,
		"size_bytes":  doc.SizeBytes,
	})
	return doc, nil
}

// Open streams the stored PDF for a caller allowed to read it.
func (s *Service) Open(ctx context.Context, caller identity.Identity, id string) (Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, caller, id)
	if err != nil {
		return Document{}, nil, err
	}
	rc, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Document{}, nil, ErrNotFound
		}
		return Document{}, nil, err
	}
	return doc, rc, nil
}

// DownloadURL returns a presigned URL when the store supports it.
func (s *Service) DownloadURL(ctx context.Context, caller identity.Identity, id string) (string, bool, error) {
	presigner, ok := s.Store.(object.Presigner)
	if !ok {
		return "", false, nil
	}
	doc, err := s.Get(ctx, caller, id)
	if err != nil {
		return "", false, err
	}
	url, err := presigner.PresignGet(ctx, doc.StorageKey, downloadName(doc), downloadURLTTL)
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}

// Compose renders a signature mark onto the caller's document. With Apply
// set the result becomes the stored file; the status is left alone.
func (s *Service) Compose(ctx context.Context, owner identity.Identity, id string, in ComposeInput) (ComposeResult, error) {
	if err := validate.Struct(in); err != nil {
		return ComposeResult{}, err
	}
	doc, err := s.owned(ctx, owner, id)
	if err != nil {
		return ComposeResult{}, err
	}
	original, err := s.readBlob(ctx, doc.StorageKey)
	if err != nil {
		return ComposeResult{}, err
	}

	pageSize, err := compose.PageSize(original, in.Page)
	if err != nil {
		return ComposeResult{}, err
	}
	mapper, err := placement.NewMapper(in.Preview, pageSize)
	if err != nil {
		return ComposeResult{}, err
	}
	pos, err := mapper.ToPDF(in.Position)
	if err != nil {
		return ComposeResult{}, err
	}

	out, err := s.composer().Compose(original, compose.Request{
		Page:     in.Page,
		Position: pos,
		Scale:    mapper.Scale(),
		Signature: compose.Signature{
			Kind:     in.Signature.Kind,
			Value:    in.Signature.Value,
			Font:     in.Signature.Font,
			FontSize: in.Signature.FontSize,
		},
	})
	if err != nil {
		return ComposeResult{}, err
	}

	result := ComposeResult{PDF: out, Document: doc}
	if in.Apply {
		updated, err := s.storeRevision(ctx, doc, doc.OriginalFilename, out, doc.Status)
		if err != nil {
			return ComposeResult{}, err
		}
		result.Document = updated
		result.Applied = true
	}
	telemetry.Info("document.composed", map[string]any{
		"document_id": doc.ID,
		"user_id":     owner.UserID,
		"page":        in.Page,
		"kind":        in.Signature.Kind,
		"applied":     in.Apply,
	})
	return result, nil
}

// MarkSigned flips the document to signed once and reports whether this
// call made the change.
func (s *Service) MarkSigned(ctx context.Context, id string) (bool, error) {
	changed, err := s.Repo.MarkSigned(ctx, id, s.now())
	if err != nil {
		return false, err
	}
	if changed {
		metrics.IncDocumentsRolledUp()
		telemetry.Info("document.status_changed", map[string]any{
			"document_id":       id,
			"status_transition": "->signed",
		})
	}
	return changed, nil
}

// MarkPending moves a draft or signed document to pending.
func (s *Service) MarkPending(ctx context.Context, id string) (bool, error) {
	return s.Repo.MarkPending(ctx, id, s.now())
}

func (s *Service) owned(ctx context.Context, owner identity.Identity, id string) (Document, error) {
	if owner.UserID == "" {
		return Document{}, apperr.ErrAuthentication
	}
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if !doc.OwnedBy(owner.UserID) {
		return Document{}, ErrNotOwner
	}
	return doc, nil
}

func (s *Service) storeRevision(ctx context.Context, doc Document, fileName string, data []byte, status Status) (Document, error) {
	if fileName == "" {
		fileName = doc.FileName
	}
	storageKey, size, _, err := s.Store.Save(ctx, doc.OwnerID, fileName, bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("save blob: %w", err)
	}
	summary := s.inspect(ctx, data)

	oldKey := doc.StorageKey
	doc.StorageKey = storageKey
	doc.StorageProvider = s.provider()
	doc.FileName = storageFileName(storageKey, fileName)
	doc.OriginalFilename = fileName
	doc.MimeType = mimePDF
	doc.SizeBytes = size
	doc.PageCount = summary.PageCount
	doc.ContentExcerpt = summary.Excerpt
	doc.Status = status
	doc.UpdatedAt = s.now()

	if err := s.Repo.Update(ctx, doc); err != nil {
		s.deleteBlob(ctx, storageKey)
		return Document{}, err
	}
	if oldKey != storageKey {
		s.deleteBlob(ctx, oldKey)
	}
	return doc, nil
}

func (s *Service) readPDF(r io.Reader) ([]byte, error) {
	limit := s.uploadLimit()
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, ErrFileRequired
	}
	if http.DetectContentType(data) != mimePDF {
		return nil, ErrNotPDF
	}
	return data, nil
}

func (s *Service) readBlob(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.Store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// inspect never fails the caller: an unreadable PDF still counts as one page.
func (s *Service) inspect(ctx context.Context, data []byte) extract.Summary {
	summary, err := extract.Inspect(ctx, data, mimePDF)
	if err != nil {
		telemetry.Warn("document.inspect_failed", map[string]any{"error": err})
		return extract.Summary{PageCount: 1}
	}
	if summary.PageCount < 1 {
		summary.PageCount = 1
	}
	return summary
}

func (s *Service) deleteBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.Store.Delete(ctx, key); err != nil {
		telemetry.Warn("document.blob_delete_failed", map[string]any{
			"storage_key": key,
			"error":       err,
		})
	}
}

func (s *Service) provider() string {
	if s.StorageProvider == "" {
		return "local"
	}
	return s.StorageProvider
}

func (s *Service) composer() *compose.Composer {
	if s.Composer == nil {
		return compose.New()
	}
	return s.Composer
}

func storageFileName(storageKey, fallback string) string {
	if i := strings.LastIndex(storageKey, "/"); i >= 0 && i < len(storageKey)-1 {
		return storageKey[i+1:]
	}
	return fallback
}

func downloadName(doc Document) string {
	if doc.OriginalFilename != "" {
		return doc.OriginalFilename
	}
	return doc.FileName
}

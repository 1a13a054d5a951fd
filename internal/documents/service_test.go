package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"esign-backend/internal/placement"
	"esign-backend/internal/shared/apperr"
	"esign-backend/internal/shared/identity"
	"esign-backend/internal/shared/pdftest"
	"esign-backend/internal/shared/storage/object"
	localstore "esign-backend/internal/shared/storage/object/local"
)

var (
	testOwner = identity.Identity{UserID: "user-1", Email: "owner@example.com", Name: "Owner"}
	testOther = identity.Identity{UserID: "user-2", Email: "other@example.com", Name: "Other"}
)

type recordingCleaner struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingCleaner) DeleteByDocument(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *recordingCleaner) {
	t.Helper()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	cleaner := &recordingCleaner{}
	return &Service{
		Store:          localstore.New(t.TempDir()),
		Repo:           NewMemoryRepo(),
		MaxUploadBytes: 1 << 20,
		Dependents:     cleaner,
		Now:            func() time.Time { return now },
	}, cleaner
}

func uploadPDF(t *testing.T, svc *Service, owner identity.Identity, title string, pages int) Document {
	t.Helper()
	doc, err := svc.Upload(context.Background(), owner, UploadInput{
		Title:    title,
		Tags:     "nda, legal, nda",
		FileName: "contract.pdf",
		Body:     bytes.NewReader(pdftest.Minimal(pages)),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return doc
}

func TestUploadRecordsDraftDocument(t *testing.T) {
	svc, _ := newTestService(t)
	doc := uploadPDF(t, svc, testOwner, "  Mutual NDA  ", 2)

	if doc.Status != StatusDraft {
		t.Fatalf("expected draft, got %s", doc.Status)
	}
	if doc.Title != "Mutual NDA" {
		t.Fatalf("expected trimmed title, got %q", doc.Title)
	}
	if doc.PageCount != 2 {
		t.Fatalf("expected 2 pages, got %d", doc.PageCount)
	}
	if got := doc.ExpiresAt.Sub(doc.CreatedAt); got != DefaultExpiry {
		t.Fatalf("expected 30 day expiry, got %v", got)
	}
	if strings.Join(doc.Tags, ",") != "nda,legal" {
		t.Fatalf("unexpected tags %v", doc.Tags)
	}
	if !strings.Contains(doc.ContentExcerpt, "Mutual NDA") {
		t.Fatalf("expected excerpt, got %q", doc.ContentExcerpt)
	}
	if doc.OriginalFilename != "contract.pdf" || doc.MimeType != mimePDF {
		t.Fatalf("unexpected file fields %+v", doc)
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, testOwner, UploadInput{Title: "x", FileName: "a.txt", Body: strings.NewReader("hello world")})
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}

	_, err = svc.Upload(ctx, testOwner, UploadInput{Title: "", FileName: "a.pdf", Body: bytes.NewReader(pdftest.Minimal(1))})
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindValidation || len(ae.Fields) != 1 || ae.Fields[0].Field != "title" {
		t.Fatalf("expected title validation error, got %v", err)
	}

	_, err = svc.Upload(ctx, testOwner, UploadInput{Title: strings.Repeat("t", 101), FileName: "a.pdf", Body: bytes.NewReader(pdftest.Minimal(1))})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for long title, got %v", err)
	}

	svc.MaxUploadBytes = 64
	_, err = svc.Upload(ctx, testOwner, UploadInput{Title: "big", FileName: "a.pdf", Body: bytes.NewReader(pdftest.Minimal(1))})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}

	_, err = svc.Upload(ctx, identity.Identity{}, UploadInput{Title: "x", FileName: "a.pdf", Body: bytes.NewReader(pdftest.Minimal(1))})
	if !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestListPagesFiltersAndSearches(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	base := svc.Now()
	for i, title := range []string{"Lease agreement", "Employment offer", "Lease renewal"} {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.Now = func() time.Time { return at }
		uploadPDF(t, svc, testOwner, title, 1)
	}
	uploadPDF(t, svc, testOther, "Lease for someone else", 1)

	res, err := svc.List(ctx, testOwner, ListQuery{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 3 || res.TotalPages != 2 || len(res.Documents) != 2 {
		t.Fatalf("unexpected page %+v", res)
	}
	if res.Documents[0].Title != "Lease renewal" {
		t.Fatalf("expected newest first, got %q", res.Documents[0].Title)
	}

	res, err = svc.List(ctx, testOwner, ListQuery{Search: "lease"})
	if err != nil {
		t.Fatalf("List search: %v", err)
	}
	if res.Total != 2 || res.Limit != defaultPageSize {
		t.Fatalf("expected 2 lease docs with default limit, got %+v", res)
	}

	res, err = svc.List(ctx, testOwner, ListQuery{Status: "signed"})
	if err != nil || res.Total != 0 {
		t.Fatalf("expected no signed docs, got %+v %v", res, err)
	}
	if _, err := svc.List(ctx, testOwner, ListQuery{Status: "bogus"}); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("expected ErrBadStatus, got %v", err)
	}
}

func TestGetEnforcesOwnershipUnlessPublic(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc := uploadPDF(t, svc, testOwner, "Private", 1)

	if _, err := svc.Get(ctx, testOther, doc.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	public := true
	if _, err := svc.Update(ctx, testOwner, doc.ID, UpdateInput{IsPublic: &public}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := svc.Get(ctx, testOther, doc.ID); err != nil {
		t.Fatalf("expected public doc readable, got %v", err)
	}
	if _, err := svc.Update(ctx, testOther, doc.ID, UpdateInput{IsPublic: &public}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected non-owner update to fail, got %v", err)
	}
	if _, err := svc.Get(ctx, testOwner, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRejectsManualSignedStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc := uploadPDF(t, svc, testOwner, "Offer", 1)

	signed := "signed"
	if _, err := svc.Update(ctx, testOwner, doc.ID, UpdateInput{Status: &signed}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	completed := "completed"
	title := "Offer v2"
	tags := TagList{"hr"}
	updated, err := svc.Update(ctx, testOwner, doc.ID, UpdateInput{Status: &completed, Title: &title, Tags: &tags})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != StatusCompleted || updated.Title != "Offer v2" || len(updated.Tags) != 1 {
		t.Fatalf("unexpected update %+v", updated)
	}
}

func TestDeleteRemovesDependentsAndBlob(t *testing.T) {
	svc, cleaner := newTestService(t)
	ctx := context.Background()
	doc := uploadPDF(t, svc, testOwner, "Temp", 1)

	if err := svc.Delete(ctx, testOther, doc.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := svc.Delete(ctx, testOwner, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(cleaner.ids) != 1 || cleaner.ids[0] != doc.ID {
		t.Fatalf("expected dependents cleaned, got %v", cleaner.ids)
	}
	if _, err := svc.Lookup(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected document gone, got %v", err)
	}
	if _, err := svc.Store.Open(ctx, doc.StorageKey); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected blob gone, got %v", err)
	}
}

func TestReplaceFileMarksSignedAndSwapsBlob(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc := uploadPDF(t, svc, testOwner, "Lease", 1)

	updated, err := svc.ReplaceFile(ctx, testOwner, doc.ID, "signed.pdf", bytes.NewReader(pdftest.Minimal(3)))
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}
	if updated.Status != StatusSigned || updated.PageCount != 3 || updated.OriginalFilename != "signed.pdf" {
		t.Fatalf("unexpected replaced doc %+v", updated)
	}
	if updated.StorageKey == doc.StorageKey {
		t.Fatalf("expected new storage key")
	}
	if _, err := svc.Store.Open(ctx, doc.StorageKey); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected old blob removed, got %v", err)
	}
	if _, err := svc.ReplaceFile(ctx, testOwner, doc.ID, "notes.txt", strings.NewReader("plain text")); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestMarkSignedChangesOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc := uploadPDF(t, svc, testOwner, "Once", 1)

	if changed, err := svc.MarkPending(ctx, doc.ID); err != nil || !changed {
		t.Fatalf("expected draft->pending, got %v %v", changed, err)
	}
	if changed, err := svc.MarkPending(ctx, doc.ID); err != nil || changed {
		t.Fatalf("expected pending to stay, got %v %v", changed, err)
	}
	if changed, err := svc.MarkSigned(ctx, doc.ID); err != nil || !changed {
		t.Fatalf("expected first MarkSigned to change, got %v %v", changed, err)
	}
	if changed, err := svc.MarkSigned(ctx, doc.ID); err != nil || changed {
		t.Fatalf("expected second MarkSigned to be a no-op, got %v %v", changed, err)
	}
	got, _ := svc.Lookup(ctx, doc.ID)
	if got.Status != StatusSigned {
		t.Fatalf("expected signed, got %s", got.Status)
	}
}

func TestMarkPendingReopensSignedDocument(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc := uploadPDF(t, svc, testOwner, "Reopen", 1)

	if _, err := svc.MarkSigned(ctx, doc.ID); err != nil {
		t.Fatalf("MarkSigned: %v", err)
	}
	if changed, err := svc.MarkPending(ctx, doc.ID); err != nil || !changed {
		t.Fatalf("expected signed->pending, got %v %v", changed, err)
	}
	got, _ := svc.Lookup(ctx, doc.ID)
	if got.Status != StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
}

func TestComposeRendersAndOptionallyApplies(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc := uploadPDF(t, svc, testOwner, "Compose", 1)
	original := pdftest.Minimal(1)

	in := ComposeInput{
		Page:      1,
		Preview:   placement.Size{Width: 612, Height: 792},
		Position:  placement.Point{X: 200, Y: 300},
		Signature: SignatureInput{Kind: "text", Value: "Jane Doe"},
	}
	res, err := svc.Compose(ctx, testOwner, doc.ID, in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if res.Applied || !bytes.HasPrefix(res.PDF, original) || len(res.PDF) <= len(original) {
		t.Fatalf("expected incremental update without apply")
	}
	stored, _ := svc.Lookup(ctx, doc.ID)
	if stored.StorageKey != doc.StorageKey {
		t.Fatalf("expected blob untouched without apply")
	}

	in.Apply = true
	res, err = svc.Compose(ctx, testOwner, doc.ID, in)
	if err != nil {
		t.Fatalf("Compose apply: %v", err)
	}
	if !res.Applied || res.Document.StorageKey == doc.StorageKey || res.Document.Status != StatusDraft {
		t.Fatalf("unexpected applied result %+v", res.Document)
	}
	rc, err := svc.Store.Open(ctx, res.Document.StorageKey)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, res.PDF) {
		t.Fatalf("expected stored blob to match composed output")
	}

	in.Position = placement.Point{X: 900, Y: 10}
	if _, err := svc.Compose(ctx, testOwner, doc.ID, in); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected out-of-bounds validation error, got %v", err)
	}
	in.Position = placement.Point{X: 10, Y: 10}
	in.Signature = SignatureInput{Kind: "stamp", Value: "x"}
	if _, err := svc.Compose(ctx, testOwner, doc.ID, in); !errors.Is(err, apperr.ErrUnsupportedPayload) {
		t.Fatalf("expected unsupported payload, got %v", err)
	}
}

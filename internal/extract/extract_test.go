package extract

import (
	"context"
	"errors"
	"testing"

	"esign-backend/internal/shared/pdftest"
)

func TestInspectCountsPages(t *testing.T) {
	summary, err := Inspect(context.Background(), pdftest.Minimal(3), "application/pdf")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if summary.PageCount != 3 {
		t.Fatalf("expected 3 pages, got %d", summary.PageCount)
	}
	if len([]rune(summary.Excerpt)) > ExcerptLimit {
		t.Fatalf("excerpt exceeds limit")
	}
}

func TestInspectRejectsNonPDF(t *testing.T) {
	_, err := Inspect(context.Background(), []byte("hello"), "text/plain; charset=utf-8")
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestInspectRejectsCorruptPDF(t *testing.T) {
	if _, err := Inspect(context.Background(), []byte("%PDF-1.4\ngarbage"), "application/pdf"); err == nil {
		t.Fatalf("expected corrupt pdf to fail")
	}
}

func TestInspectHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Inspect(ctx, pdftest.Minimal(1), "application/pdf"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

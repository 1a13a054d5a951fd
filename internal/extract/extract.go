// Package extract inspects uploaded PDFs for page count and searchable text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"esign-backend/internal/shared/util"
)

const (
	mimePDF = "application/pdf"

	// ExcerptLimit caps the characters of text kept for search.
	ExcerptLimit = 4000
)

var ErrNotPDF = errors.New("not a pdf")

// Summary describes an uploaded PDF.
type Summary struct {
	PageCount int
	Excerpt   string
}

// Inspect reads page count and a whitespace-collapsed text excerpt. Pages
// whose text cannot be extracted are skipped; the page count still holds.
func Inspect(ctx context.Context, data []byte, mimeType string) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	if normalizeMimeType(mimeType) != mimePDF {
		return Summary{}, fmt.Errorf("%w: %s", ErrNotPDF, mimeType)
	}

	r, err := openPDF(data)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{PageCount: r.NumPage()}

	text, err := plainText(r)
	if err == nil {
		summary.Excerpt = util.Truncate(strings.Join(strings.Fields(text), " "), ExcerptLimit)
	}
	return summary, nil
}

func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("open pdf: %v", rec)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return r, nil
}

func plainText(r *pdf.Reader) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("extract text: %v", rec)
		}
	}()
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(plain, 4*ExcerptLimit)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func normalizeMimeType(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
}

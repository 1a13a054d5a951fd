package compose

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/digitorus/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esign-backend/internal/placement"
	"esign-backend/internal/shared/apperr"
)

func reopen(t *testing.T, data []byte) *pdf.Reader {
	t.Helper()
	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return rdr
}

func streamText(t *testing.T, v pdf.Value) string {
	t.Helper()
	rc := v.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func textRequest(page int) Request {
	return Request{
		Page:      page,
		Position:  placement.Point{X: 122.4, Y: 113.1},
		Scale:     placement.Scale{X: 1.224, Y: 1.1314},
		Signature: Signature{Kind: "text", Value: "Jane Doe"},
	}
}

func TestComposeTextAppendsIncrementalUpdate(t *testing.T) {
	for _, tc := range []struct {
		name string
		f    fixture
		typ  string
	}{
		{"xref table, inherited resources", fixture{pages: 2}, "table"},
		{"xref table, page resources", fixture{pages: 1, pageLevelFonts: true, contentsAsArrays: true}, "table"},
		{"xref stream", fixture{pages: 2, xrefStream: true}, "stream"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			src := buildPDF(t, tc.f)
			snapshot := append([]byte(nil), src...)

			out, err := New().Compose(src, textRequest(tc.f.pages))
			require.NoError(t, err)

			assert.Equal(t, snapshot, src, "input must not be modified")
			assert.True(t, bytes.HasPrefix(out, src), "original revision must be preserved")
			assert.True(t, bytes.HasSuffix(out, []byte("%%EOF\n")))

			rdr := reopen(t, out)
			assert.Equal(t, tc.typ, rdr.XrefInformation.Type)
			require.Equal(t, tc.f.pages, rdr.NumPage())

			page := rdr.Page(tc.f.pages).V
			assert.Equal(t, "Page", page.Key("Type").Name())
			assert.Equal(t, 4, page.Key("MediaBox").Len(), "inherited media box still resolves")

			contents := page.Key("Contents")
			require.Equal(t, pdf.Array, contents.Kind())
			require.Equal(t, 3, contents.Len())
			assert.Equal(t, "q\n", streamText(t, contents.Index(0)))
			assert.Contains(t, streamText(t, contents.Index(1)), "(Page")
			mark := streamText(t, contents.Index(2))
			assert.True(t, strings.HasPrefix(mark, "Q\n"))
			assert.Contains(t, mark, "/SigF1 24 Tf 0 0 0 rg 122.4 113.1 Td <4a616e6520446f65> Tj")

			fonts := page.Key("Resources").Key("Font")
			assert.Equal(t, "Helvetica", fonts.Key("F1").Key("BaseFont").Name())
			assert.Equal(t, "Helvetica", fonts.Key("SigF1").Key("BaseFont").Name())
			assert.Equal(t, "WinAnsiEncoding", fonts.Key("SigF1").Key("Encoding").Name())

			if tc.f.pages > 1 {
				untouched := rdr.Page(1).V.Key("Contents")
				assert.NotEqual(t, pdf.Array, untouched.Kind(), "other pages keep their contents")
			}
		})
	}
}

func TestComposeTwiceChainsRevisions(t *testing.T) {
	src := buildPDF(t, fixture{pages: 1})
	c := New()

	first, err := c.Compose(src, textRequest(1))
	require.NoError(t, err)

	req := textRequest(1)
	req.Signature = Signature{Kind: "text", Value: "Second", Font: "Times New Roman, serif", FontSize: 12}
	second, err := c.Compose(first, req)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(second, first))

	rdr := reopen(t, second)
	page := rdr.Page(1).V
	fonts := page.Key("Resources").Key("Font")
	assert.Equal(t, "Helvetica", fonts.Key("SigF1").Key("BaseFont").Name())
	assert.Equal(t, "Times-Roman", fonts.Key("SigF2").Key("BaseFont").Name())
	assert.Equal(t, 5, page.Key("Contents").Len())
	assert.Contains(t, streamText(t, page.Key("Contents").Index(4)), "/SigF2 12 Tf")
}

func TestComposeImageWithAlpha(t *testing.T) {
	src := buildPDF(t, fixture{pages: 1})
	req := textRequest(1)
	req.Signature = Signature{Kind: "draw", Value: pngDataURI(t, true)}

	out, err := New().Compose(src, req)
	require.NoError(t, err)

	page := reopen(t, out).Page(1).V
	img := page.Key("Resources").Key("XObject").Key("SigIm1")
	assert.Equal(t, "Image", img.Key("Subtype").Name())
	assert.Equal(t, int64(8), img.Key("Width").Int64())
	assert.Equal(t, "DeviceRGB", img.Key("ColorSpace").Name())
	assert.Equal(t, "Image", img.Key("SMask").Key("Subtype").Name())

	mark := streamText(t, page.Key("Contents").Index(2))
	assert.Contains(t, mark, "q 146.88 0 0 67.884 122.4 113.1 cm /SigIm1 Do Q")
}

func TestComposeOpaqueJPEGPassesThrough(t *testing.T) {
	src := buildPDF(t, fixture{pages: 1})
	req := textRequest(1)
	req.Signature = Signature{Kind: "upload", Value: jpegDataURI(t)}

	out, err := New().Compose(src, req)
	require.NoError(t, err)

	img := reopen(t, out).Page(1).V.Key("Resources").Key("XObject").Key("SigIm1")
	assert.Equal(t, "DCTDecode", img.Key("Filter").Name())
	assert.True(t, img.Key("SMask").IsNull())
}

func TestComposeErrors(t *testing.T) {
	src := buildPDF(t, fixture{pages: 2})
	c := New()

	cases := []struct {
		name string
		pdf  []byte
		mut  func(*Request)
		want error
		kind *apperr.Error
	}{
		{"missing data uri prefix", src, func(r *Request) { r.Signature = Signature{Kind: "image", Value: "aGVsbG8="} }, ErrInvalidImageData, apperr.ErrUnsupportedPayload},
		{"undecodable image", src, func(r *Request) { r.Signature = Signature{Kind: "image", Value: "data:image/png;base64,aGVsbG8="} }, ErrInvalidImageData, apperr.ErrUnsupportedPayload},
		{"unknown kind", src, func(r *Request) { r.Signature.Kind = "stamp" }, ErrUnsupportedSignatureKind, apperr.ErrUnsupportedPayload},
		{"absent kind", src, func(r *Request) { r.Signature.Kind = "" }, ErrUnsupportedSignatureKind, apperr.ErrUnsupportedPayload},
		{"page zero", src, func(r *Request) { r.Page = 0 }, ErrPageOutOfRange, apperr.ErrValidation},
		{"page past end", src, func(r *Request) { r.Page = 3 }, ErrPageOutOfRange, apperr.ErrValidation},
		{"blank text", src, func(r *Request) { r.Signature.Value = "  \n " }, ErrEmptyText, apperr.ErrValidation},
		{"not a pdf", []byte("hello"), func(r *Request) {}, ErrInvalidPDF, apperr.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := textRequest(1)
			tc.mut(&req)
			out, err := c.Compose(tc.pdf, req)
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestPageSizeAndCount(t *testing.T) {
	src := buildPDF(t, fixture{pages: 3})
	n, err := PageCount(src)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	size, err := PageSize(src, 2)
	require.NoError(t, err)
	assert.Equal(t, placement.Size{Width: 612, Height: 792}, size)

	_, err = PageSize(src, 4)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

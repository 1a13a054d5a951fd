package compose

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

type fixture struct {
	pages            int
	xrefStream       bool
	pageLevelFonts   bool
	contentsAsArrays bool
}

// buildPDF writes a small, valid PDF with computed xref offsets.
func buildPDF(t *testing.T, f fixture) []byte {
	t.Helper()
	if f.pages == 0 {
		f.pages = 1
	}
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := map[int]int{}
	obj := func(id int, body string) {
		offsets[id] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", id, body)
	}

	// 1 catalog, 2 pages, 3 font, then content+page pairs.
	fontRes := "<< /Font << /F1 3 0 R >> /ProcSet [/PDF /Text] >>"
	kids := ""
	for i := 0; i < f.pages; i++ {
		kids += fmt.Sprintf(" %d 0 R", 5+2*i)
	}
	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	pagesDict := fmt.Sprintf("<< /Type /Pages /Kids [%s ] /Count %d /MediaBox [0 0 612 792]", kids, f.pages)
	if !f.pageLevelFonts {
		pagesDict += " /Resources " + fontRes
	}
	obj(2, pagesDict+" >>")
	obj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	for i := 0; i < f.pages; i++ {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (Page %d) Tj ET", i+1)
		contentID, pageID := 4+2*i, 5+2*i
		obj(contentID, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
		page := "<< /Type /Page /Parent 2 0 R"
		if f.contentsAsArrays {
			page += fmt.Sprintf(" /Contents [%d 0 R]", contentID)
		} else {
			page += fmt.Sprintf(" /Contents %d 0 R", contentID)
		}
		if f.pageLevelFonts {
			page += " /Resources " + fontRes
		}
		obj(pageID, page+" >>")
	}
	size := 4 + 2*f.pages

	if !f.xrefStream {
		xref := b.Len()
		fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", size)
		for id := 1; id < size; id++ {
			fmt.Fprintf(&b, "%010d 00000 n \n", offsets[id])
		}
		fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R /ID [<0102><0304>] >>\nstartxref\n%d\n%%%%EOF\n", size, xref)
		return b.Bytes()
	}

	xrefID := size
	offsets[xrefID] = b.Len()
	var rows bytes.Buffer
	rows.Write([]byte{0, 0, 0, 0, 0, 0xff, 0xff})
	for id := 1; id <= xrefID; id++ {
		var row [7]byte
		row[0] = 1
		binary.BigEndian.PutUint32(row[1:5], uint32(offsets[id]))
		rows.Write(row[:])
	}
	fmt.Fprintf(&b, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2] /Root 1 0 R /Length %d >>\nstream\n", xrefID, xrefID+1, rows.Len())
	b.Write(rows.Bytes())
	fmt.Fprintf(&b, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", offsets[xrefID])
	return b.Bytes()
}

func pngDataURI(t *testing.T, transparent bool) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			a := uint8(0xff)
			if transparent && x%2 == 0 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 200, A: a})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func jpegDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// Package compose burns signature marks into PDF pages. Output is written
// as an incremental update, so the original revision stays byte-for-byte
// intact at the start of the new file.
package compose

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/digitorus/pdf"
	"golang.org/x/text/encoding/charmap"

	"esign-backend/internal/placement"
	"esign-backend/internal/shared/metrics"
)

// ImageFootprint is the preview-space size of an image mark before scaling.
var ImageFootprint = placement.Size{Width: 120, Height: 60}

// Signature is the mark to draw.
type Signature struct {
	Kind     string
	Value    string
	Font     string
	FontSize float64
}

// Request places one signature on one page.
type Request struct {
	// Page is 1-based.
	Page      int
	Position  placement.Point
	Scale     placement.Scale
	Signature Signature
}

// Composer draws signature marks.
type Composer struct {
	now func() time.Time
}

// New returns a Composer.
func New() *Composer {
	return &Composer{now: time.Now}
}

// Compose returns a new PDF with the signature drawn at the requested
// position. pdfBytes is never modified.
func (c *Composer) Compose(pdfBytes []byte, req Request) ([]byte, error) {
	start := c.now()
	kind, err := ParseKind(req.Signature.Kind)
	if err != nil {
		return nil, err
	}

	var img *imageXObject
	var text []byte
	if kind.IsImage() {
		decoded, err := DecodeDataURI(req.Signature.Value)
		if err != nil {
			return nil, err
		}
		if img, err = newImageXObject(decoded); err != nil {
			return nil, err
		}
	} else {
		if text, err = encodeText(req.Signature.Value); err != nil {
			return nil, err
		}
	}

	rdr, err := open(pdfBytes)
	if err != nil {
		return nil, err
	}
	page, err := pageAt(rdr, req.Page)
	if err != nil {
		return nil, err
	}
	box := mediaBox(page)
	x := box.llx + req.Position.X
	y := box.lly + req.Position.Y

	u, err := newIncrementalUpdate(rdr, pdfBytes)
	if err != nil {
		return nil, err
	}

	var ops bytes.Buffer
	var fontName, imageName string
	var fontRef, imageRef objRef
	resources := inherited(page, "Resources")

	if img != nil {
		imageName = freeName(resources.Key("XObject"), "SigIm")
		if imageRef, err = writeImage(u, img); err != nil {
			return nil, err
		}
		w := ImageFootprint.Width * req.Scale.X
		h := ImageFootprint.Height * req.Scale.Y
		fmt.Fprintf(&ops, "q %s 0 0 %s %s %s cm %s Do Q\n", num(w), num(h), num(x), num(y), name(imageName))
	} else {
		fontName = freeName(resources.Key("Font"), "SigF")
		fontRef = u.alloc()
		if err := u.writeObject(fontRef, []byte(fontDict(standardFont(req.Signature.Font)))); err != nil {
			return nil, err
		}
		size := req.Signature.FontSize
		if size <= 0 {
			size = DefaultFontSize
		}
		fmt.Fprintf(&ops, "q BT %s %s Tf 0 0 0 rg %s %s Td ", name(fontName), num(size), num(x), num(y))
		writeHexString(&ops, string(text))
		ops.WriteString(" Tj ET Q\n")
	}

	saveRef := u.alloc()
	if err := u.writeStream(saveRef, "", []byte("q\n")); err != nil {
		return nil, err
	}
	markRef := u.alloc()
	body, err := deflate(append([]byte("Q\n"), ops.Bytes()...))
	if err != nil {
		return nil, err
	}
	if err := u.writeStream(markRef, "/Filter /FlateDecode", body); err != nil {
		return nil, err
	}

	var dict bytes.Buffer
	dict.WriteString("<<")
	if err := dictEntries(&dict, page, "Type", "Contents", "Resources"); err != nil {
		return nil, err
	}
	dict.WriteString(" /Type /Page /Contents [")
	dict.WriteString(saveRef.String())
	if err := writeContents(&dict, page); err != nil {
		return nil, err
	}
	dict.WriteString(" " + markRef.String() + "] /Resources ")
	if err := writeResources(&dict, resources, fontName, fontRef, imageName, imageRef); err != nil {
		return nil, err
	}
	dict.WriteString(" >>")

	if err := u.writeObject(refOf(page), dict.Bytes()); err != nil {
		return nil, err
	}
	out, err := u.finish()
	if err != nil {
		return nil, err
	}
	metrics.ObserveCompose(string(kind), c.now().Sub(start))
	return out, nil
}

// PageCount returns the number of pages in the document.
func PageCount(pdfBytes []byte) (int, error) {
	rdr, err := open(pdfBytes)
	if err != nil {
		return 0, err
	}
	return rdr.NumPage(), nil
}

// PageSize returns the MediaBox dimensions of a 1-based page. Pages without
// a readable box are treated as US Letter.
func PageSize(pdfBytes []byte, page int) (placement.Size, error) {
	rdr, err := open(pdfBytes)
	if err != nil {
		return placement.Size{}, err
	}
	p, err := pageAt(rdr, page)
	if err != nil {
		return placement.Size{}, err
	}
	box := mediaBox(p)
	return placement.Size{Width: box.urx - box.llx, Height: box.ury - box.lly}, nil
}

func open(pdfBytes []byte) (rdr *pdf.Reader, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(pdfBytes, "\r\n\t "), []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidPDF)
	}
	defer func() {
		if r := recover(); r != nil {
			rdr, err = nil, fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()
	rdr, err = pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if !rdr.Trailer().Key("Encrypt").IsNull() {
		return nil, fmt.Errorf("%w: encrypted documents are not supported", ErrInvalidPDF)
	}
	return rdr, nil
}

func pageAt(rdr *pdf.Reader, page int) (pdf.Value, error) {
	if page < 1 || page > rdr.NumPage() {
		return pdf.Value{}, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, rdr.NumPage())
	}
	v := rdr.Page(page).V
	if v.Kind() != pdf.Dict || refOf(v).id == 0 {
		return pdf.Value{}, fmt.Errorf("%w: page %d is not an indirect dictionary", ErrInvalidPDF, page)
	}
	return v, nil
}

type rect struct {
	llx, lly, urx, ury float64
}

func mediaBox(page pdf.Value) rect {
	box := inherited(page, "MediaBox")
	if box.Kind() == pdf.Array && box.Len() == 4 {
		r := rect{box.Index(0).Float64(), box.Index(1).Float64(), box.Index(2).Float64(), box.Index(3).Float64()}
		if r.urx > r.llx && r.ury > r.lly {
			return r
		}
	}
	return rect{0, 0, 612, 792}
}

// inherited looks a page attribute up through the page tree.
func inherited(page pdf.Value, key string) pdf.Value {
	for node, depth := page, 0; node.Kind() == pdf.Dict && depth < 32; node, depth = node.Key("Parent"), depth+1 {
		if v := node.Key(key); !v.IsNull() {
			return v
		}
	}
	return pdf.Value{}
}

// freeName picks a resource name not already used in dict.
func freeName(dict pdf.Value, prefix string) string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s%d", prefix, i)
		if dict.Kind() != pdf.Dict || dict.Key(candidate).IsNull() {
			return candidate
		}
	}
}

func writeContents(dict *bytes.Buffer, page pdf.Value) error {
	contents := page.Key("Contents")
	self := refOf(page)
	switch contents.Kind() {
	case pdf.Null:
		return nil
	case pdf.Array:
		arrRef := refOf(contents)
		for i := 0; i < contents.Len(); i++ {
			dict.WriteByte(' ')
			if err := writeValue(dict, contents.Index(i), arrRef); err != nil {
				return err
			}
		}
		return nil
	default:
		dict.WriteByte(' ')
		return writeValue(dict, contents, self)
	}
}

func writeResources(dict *bytes.Buffer, res pdf.Value, fontName string, fontRef objRef, imageName string, imageRef objRef) error {
	dict.WriteString("<<")
	if err := dictEntries(dict, res, "Font", "XObject"); err != nil {
		return err
	}
	if err := writeSubdict(dict, res, "Font", fontName, fontRef); err != nil {
		return err
	}
	if err := writeSubdict(dict, res, "XObject", imageName, imageRef); err != nil {
		return err
	}
	dict.WriteString(" >>")
	return nil
}

func writeSubdict(dict *bytes.Buffer, res pdf.Value, key string, add string, ref objRef) error {
	existing := res.Key(key)
	if add == "" {
		if existing.IsNull() {
			return nil
		}
		dict.WriteString(" " + name(key) + " ")
		return writeValue(dict, existing, refOf(res))
	}
	dict.WriteString(" " + name(key) + " <<")
	if err := dictEntries(dict, existing); err != nil {
		return err
	}
	dict.WriteString(" " + name(add) + " " + ref.String() + " >>")
	return nil
}

func writeImage(u *incrementalUpdate, img *imageXObject) (objRef, error) {
	var smask objRef
	if img.alpha != nil {
		smask = u.alloc()
		dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /FlateDecode",
			img.width, img.height)
		if err := u.writeStream(smask, dict, img.alpha); err != nil {
			return objRef{}, err
		}
	}
	ref := u.alloc()
	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /%s /BitsPerComponent 8 /Filter /%s",
		img.width, img.height, img.colorSpace, img.filter)
	if smask.id > 0 {
		dict += " /SMask " + smask.String()
	}
	return ref, u.writeStream(ref, dict, img.data)
}

// encodeText converts a signature line to WinAnsi bytes; characters outside
// the code page become '?'.
func encodeText(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil, ErrEmptyText
	}
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out, nil
}

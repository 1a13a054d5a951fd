package compose

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/digitorus/pdf"
	"github.com/mattetti/filebuffer"
)

type xrefEntry struct {
	ref    objRef
	offset int64
}

// incrementalUpdate appends objects to an unmodified copy of the source file
// and closes the revision with an xref section chained to the previous one.
type incrementalUpdate struct {
	rdr     *pdf.Reader
	out     *filebuffer.Buffer
	nextID  uint32
	entries []xrefEntry
}

func newIncrementalUpdate(rdr *pdf.Reader, original []byte) (*incrementalUpdate, error) {
	out := filebuffer.New([]byte{})
	if _, err := out.Write(original); err != nil {
		return nil, err
	}
	if len(original) > 0 && original[len(original)-1] != '\n' {
		if _, err := out.Write([]byte("\n")); err != nil {
			return nil, err
		}
	}

	next := uint32(rdr.XrefInformation.ItemCount)
	if size := rdr.Trailer().Key("Size").Int64(); size > int64(next) {
		next = uint32(size)
	}
	if next == 0 {
		next = 1
	}
	return &incrementalUpdate{rdr: rdr, out: out, nextID: next}, nil
}

func (u *incrementalUpdate) alloc() objRef {
	ref := objRef{id: u.nextID}
	u.nextID++
	return ref
}

func (u *incrementalUpdate) offset() int64 {
	return int64(u.out.Buff.Len())
}

// writeObject writes body as object ref.
func (u *incrementalUpdate) writeObject(ref objRef, body []byte) error {
	u.entries = append(u.entries, xrefEntry{ref: ref, offset: u.offset()})
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d %d obj\n", ref.id, ref.gen)
	b.Write(body)
	b.WriteString("\nendobj\n")
	_, err := u.out.Write(b.Bytes())
	return err
}

// writeStream writes a stream object; dict holds the entries other than
// /Length.
func (u *incrementalUpdate) writeStream(ref objRef, dict string, data []byte) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<< %s /Length %d >>\nstream\n", dict, len(data))
	b.Write(data)
	b.WriteString("\nendstream")
	return u.writeObject(ref, b.Bytes())
}

// finish closes the revision with an xref section matching the source
// file's style and returns the full document.
func (u *incrementalUpdate) finish() ([]byte, error) {
	trailer := u.rdr.Trailer()
	root := refOf(trailer.Key("Root"))
	if root.id == 0 {
		return nil, fmt.Errorf("%w: missing /Root", ErrInvalidPDF)
	}

	var err error
	if u.rdr.XrefInformation.Type == "stream" {
		err = u.writeXrefStream(trailer, root)
	} else {
		err = u.writeXrefTable(trailer, root)
	}
	if err != nil {
		return nil, err
	}
	return u.out.Buff.Bytes(), nil
}

func (u *incrementalUpdate) writeXrefTable(trailer pdf.Value, root objRef) error {
	xrefOffset := u.offset()
	var b bytes.Buffer
	b.WriteString("xref\n")
	for _, run := range runs(u.entries) {
		fmt.Fprintf(&b, "%d %d\n", run[0].ref.id, len(run))
		for _, e := range run {
			fmt.Fprintf(&b, "%010d %05d n\r\n", e.offset, e.ref.gen)
		}
	}
	b.WriteString("trailer\n<<")
	u.writeTrailerEntries(&b, trailer, root)
	fmt.Fprintf(&b, " >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	_, err := u.out.Write(b.Bytes())
	return err
}

// writeXrefStream uses /W [1 4 2]: type, offset, generation.
func (u *incrementalUpdate) writeXrefStream(trailer pdf.Value, root objRef) error {
	self := u.alloc()
	xrefOffset := u.offset()
	u.entries = append(u.entries, xrefEntry{ref: self, offset: xrefOffset})

	var rows bytes.Buffer
	var index bytes.Buffer
	for _, run := range runs(u.entries) {
		fmt.Fprintf(&index, " %d %d", run[0].ref.id, len(run))
		for _, e := range run {
			var row [7]byte
			row[0] = 1
			binary.BigEndian.PutUint32(row[1:5], uint32(e.offset))
			binary.BigEndian.PutUint16(row[5:7], e.ref.gen)
			rows.Write(row[:])
		}
	}
	data, err := deflate(rows.Bytes())
	if err != nil {
		return err
	}

	var dict bytes.Buffer
	dict.WriteString("/Type /XRef /W [1 4 2] /Filter /FlateDecode")
	fmt.Fprintf(&dict, " /Index [%s ]", index.String())
	u.writeTrailerEntries(&dict, trailer, root)

	// Written directly: the entry for this object was recorded above.
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d %d obj\n<< %s /Length %d >>\nstream\n", self.id, self.gen, dict.String(), len(data))
	b.Write(data)
	b.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&b, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	_, err = u.out.Write(b.Bytes())
	return err
}

func (u *incrementalUpdate) writeTrailerEntries(b *bytes.Buffer, trailer pdf.Value, root objRef) {
	fmt.Fprintf(b, " /Size %d /Prev %d /Root %s", u.nextID, u.rdr.XrefInformation.StartPos, root)
	if info := refOf(trailer.Key("Info")); info.id > 0 {
		fmt.Fprintf(b, " /Info %s", info)
	}
	if id := trailer.Key("ID"); id.Kind() == pdf.Array && id.Len() == 2 {
		b.WriteString(" /ID [")
		writeHexString(b, id.Index(0).RawString())
		writeHexString(b, id.Index(1).RawString())
		b.WriteString("]")
	}
}

// runs groups entries into consecutive-id subsections.
func runs(entries []xrefEntry) [][]xrefEntry {
	sorted := append([]xrefEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ref.id < sorted[j].ref.id })
	var out [][]xrefEntry
	for _, e := range sorted {
		if n := len(out); n > 0 {
			last := out[n-1]
			if last[len(last)-1].ref.id+1 == e.ref.id {
				out[n-1] = append(last, e)
				continue
			}
		}
		out = append(out, []xrefEntry{e})
	}
	return out
}

package compose

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/digitorus/pdf"
)

// objRef identifies an indirect object.
type objRef struct {
	id  uint32
	gen uint16
}

func (r objRef) String() string {
	return fmt.Sprintf("%d %d R", r.id, r.gen)
}

func refOf(v pdf.Value) objRef {
	ptr := v.GetPtr()
	return objRef{id: ptr.GetID(), gen: ptr.GetGen()}
}

// writeValue serializes v. Values read through a container carry the
// container's pointer when they are direct, so a value is only written as a
// reference when its pointer differs from the container's.
func writeValue(buf *bytes.Buffer, v pdf.Value, container objRef) error {
	if ref := refOf(v); ref.id > 0 && ref != container {
		buf.WriteString(ref.String())
		return nil
	}
	switch v.Kind() {
	case pdf.Null:
		buf.WriteString("null")
	case pdf.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case pdf.Integer:
		buf.WriteString(strconv.FormatInt(v.Int64(), 10))
	case pdf.Real:
		buf.WriteString(num(v.Float64()))
	case pdf.String:
		writeHexString(buf, v.RawString())
	case pdf.Name:
		buf.WriteString(name(v.Name()))
	case pdf.Array:
		self := refOf(v)
		buf.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := writeValue(buf, v.Index(i), self); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case pdf.Dict:
		self := refOf(v)
		buf.WriteString("<<")
		for _, key := range v.Keys() {
			buf.WriteByte(' ')
			buf.WriteString(name(key))
			buf.WriteByte(' ')
			if err := writeValue(buf, v.Key(key), self); err != nil {
				return err
			}
		}
		buf.WriteString(" >>")
	default:
		return fmt.Errorf("%w: cannot inline value of kind %v", ErrInvalidPDF, v.Kind())
	}
	return nil
}

// dictEntries copies the entries of a dictionary except the skipped keys.
func dictEntries(buf *bytes.Buffer, v pdf.Value, skip ...string) error {
	if v.Kind() != pdf.Dict {
		return nil
	}
	self := refOf(v)
	for _, key := range v.Keys() {
		if contains(skip, key) {
			continue
		}
		buf.WriteByte(' ')
		buf.WriteString(name(key))
		buf.WriteByte(' ')
		if err := writeValue(buf, v.Key(key), self); err != nil {
			return err
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// name encodes a PDF name, escaping delimiters and non-regular bytes.
func name(n string) string {
	var b strings.Builder
	b.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < 0x21 || c > 0x7e || strings.IndexByte("#()<>[]{}/%", c) >= 0 {
			fmt.Fprintf(&b, "#%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func writeHexString(buf *bytes.Buffer, raw string) {
	buf.WriteByte('<')
	buf.WriteString(hex.EncodeToString([]byte(raw)))
	buf.WriteByte('>')
}

// num formats a real with at most four decimals.
func num(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

package compose

import "strings"

// DefaultFontSize applies when a text mark has no usable size.
const DefaultFontSize = 24.0

const (
	fontHelvetica  = "Helvetica"
	fontTimesRoman = "Times-Roman"
	fontCourier    = "Courier"
)

// standardFont maps a requested family to one of the base-14 fonts every
// PDF reader ships, falling back to Helvetica.
func standardFont(requested string) string {
	family := strings.ToLower(strings.TrimSpace(requested))
	if i := strings.Index(family, ","); i >= 0 {
		family = strings.TrimSpace(family[:i])
	}
	family = strings.Trim(family, `"'`)
	switch family {
	case "courier", "courier new", "monospace", "cursive":
		return fontCourier
	case "times", "times new roman", "times-roman", "serif", "georgia":
		return fontTimesRoman
	default:
		return fontHelvetica
	}
}

func fontDict(baseFont string) string {
	return "<< /Type /Font /Subtype /Type1 /BaseFont /" + baseFont + " /Encoding /WinAnsiEncoding >>"
}

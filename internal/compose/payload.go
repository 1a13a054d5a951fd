package compose

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"strings"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// Kind is the form a signature mark takes.
type Kind string

const (
	KindText    Kind = "text"
	KindImage   Kind = "image"
	KindDrawing Kind = "drawing"
)

// maxImagePixels bounds decoded image size.
const maxImagePixels = 4096 * 4096

// ParseKind normalizes the kind names clients send. "draw" and "upload"
// are the names used by the signing pad.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "text", "typed":
		return KindText, nil
	case "image", "upload", "uploaded":
		return KindImage, nil
	case "drawing", "draw", "drawn":
		return KindDrawing, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSignatureKind, raw)
	}
}

// IsImage reports whether the kind carries an image payload.
func (k Kind) IsImage() bool {
	return k == KindImage || k == KindDrawing
}

// DecodedImage is a validated image payload.
type DecodedImage struct {
	Format string
	Data   []byte
	Config image.Config
}

// DecodeDataURI validates a data:image/...;base64, payload and returns the
// raw image bytes along with the decoded header.
func DecodeDataURI(uri string) (DecodedImage, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(strings.ToLower(uri), "data:image/") {
		return DecodedImage{}, fmt.Errorf("%w: missing data:image/ prefix", ErrInvalidImageData)
	}
	meta, encoded, found := strings.Cut(uri, ",")
	if !found || !strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return DecodedImage{}, fmt.Errorf("%w: payload is not base64 encoded", ErrInvalidImageData)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
	}
	if err != nil || len(raw) == 0 {
		return DecodedImage{}, fmt.Errorf("%w: invalid base64", ErrInvalidImageData)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return DecodedImage{}, fmt.Errorf("%w: %v", ErrInvalidImageData, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxImagePixels {
		return DecodedImage{}, fmt.Errorf("%w: unsupported dimensions %dx%d", ErrInvalidImageData, cfg.Width, cfg.Height)
	}
	return DecodedImage{Format: format, Data: raw, Config: cfg}, nil
}

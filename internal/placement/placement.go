// Package placement converts signature positions between the on-screen
// preview of a page (top-left origin, pixels) and PDF user space
// (bottom-left origin, points).
package placement

import (
	"fmt"
	"math"

	"esign-backend/internal/shared/apperr"
)

var (
	ErrInvalidDimensions = apperr.New(apperr.KindValidation, "invalid_dimensions", "Preview and page dimensions must be positive")
	ErrOutOfBounds       = apperr.New(apperr.KindValidation, "position_out_of_bounds", "Position lies outside the preview")
)

// Point is a position in either coordinate space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scale holds the independent horizontal and vertical factors from preview
// units to PDF points.
type Scale struct {
	X float64
	Y float64
}

// Mapper maps between one preview rendering and one PDF page.
type Mapper struct {
	preview Size
	page    Size
	scale   Scale
}

// NewMapper builds a mapper for a preview of the given page.
func NewMapper(preview, page Size) (Mapper, error) {
	if !positive(preview.Width) || !positive(preview.Height) || !positive(page.Width) || !positive(page.Height) {
		return Mapper{}, fmt.Errorf("%w: preview=%gx%g page=%gx%g", ErrInvalidDimensions,
			preview.Width, preview.Height, page.Width, page.Height)
	}
	return Mapper{
		preview: preview,
		page:    page,
		scale: Scale{
			X: page.Width / preview.Width,
			Y: page.Height / preview.Height,
		},
	}, nil
}

// Scale returns the preview-to-PDF factors.
func (m Mapper) Scale() Scale { return m.scale }

// ToPDF maps a preview position into PDF space. Positions outside the
// preview are rejected, never clamped.
func (m Mapper) ToPDF(p Point) (Point, error) {
	if !within(p.X, m.preview.Width) || !within(p.Y, m.preview.Height) {
		return Point{}, fmt.Errorf("%w: (%g, %g) not in [0,%g]x[0,%g]", ErrOutOfBounds,
			p.X, p.Y, m.preview.Width, m.preview.Height)
	}
	return Point{
		X: p.X * m.scale.X,
		Y: (m.preview.Height - p.Y) * m.scale.Y,
	}, nil
}

// ToPreview is the inverse of ToPDF.
func (m Mapper) ToPreview(p Point) (Point, error) {
	if !within(p.X, m.page.Width) || !within(p.Y, m.page.Height) {
		return Point{}, fmt.Errorf("%w: (%g, %g) not in [0,%g]x[0,%g]", ErrOutOfBounds,
			p.X, p.Y, m.page.Width, m.page.Height)
	}
	return Point{
		X: p.X / m.scale.X,
		Y: m.preview.Height - p.Y/m.scale.Y,
	}, nil
}

// ScaleSize converts a preview footprint into PDF points.
func (m Mapper) ScaleSize(s Size) Size {
	return Size{Width: s.Width * m.scale.X, Height: s.Height * m.scale.Y}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func within(v, max float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= max
}

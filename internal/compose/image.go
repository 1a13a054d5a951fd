package compose

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
)

// imageXObject is an image ready to be written as a PDF XObject.
type imageXObject struct {
	width, height int
	colorSpace    string
	filter        string
	data          []byte
	alpha         []byte // nil when fully opaque
}

func newImageXObject(img DecodedImage) (*imageXObject, error) {
	if img.Format == "jpeg" {
		switch img.Config.ColorModel {
		case color.YCbCrModel, color.RGBAModel:
			return &imageXObject{width: img.Config.Width, height: img.Config.Height, colorSpace: "DeviceRGB", filter: "DCTDecode", data: img.Data}, nil
		case color.GrayModel:
			return &imageXObject{width: img.Config.Width, height: img.Config.Height, colorSpace: "DeviceGray", filter: "DCTDecode", data: img.Data}, nil
		}
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageData, err)
	}
	b := decoded.Bounds()
	w, h := b.Dx(), b.Dy()
	rgb := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	opaque := true
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(decoded.At(x, y)).(color.NRGBA)
			rgb = append(rgb, c.R, c.G, c.B)
			alpha = append(alpha, c.A)
			if c.A != 0xff {
				opaque = false
			}
		}
	}

	out := &imageXObject{width: w, height: h, colorSpace: "DeviceRGB", filter: "FlateDecode"}
	if out.data, err = deflate(rgb); err != nil {
		return nil, err
	}
	if !opaque {
		if out.alpha, err = deflate(alpha); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func deflate(data []byte) ([]byte, error) {
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

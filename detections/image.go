package detections

import (
	"bytes"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// JPEGQuality matches the quality most image libraries use when none is given.
const JPEGQuality = 75

// DecodeRGB decodes an encoded image and forces it to three opaque channels.
// Alpha is discarded rather than composited, so color values are kept as-is.
func DecodeRGB(data []byte) (*image.NRGBA, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	rgb := imaging.Clone(src)
	for i := 3; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i] = 0xff
	}
	return rgb, nil
}

// Resize scales img to a size x size square, ignoring aspect ratio.
func Resize(img image.Image, size int) *image.NRGBA {
	return imaging.Resize(img, size, size, imaging.CatmullRom)
}

func EncodeJPEG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return errors.Wrap(err, "encode jpeg")
	}
	return nil
}

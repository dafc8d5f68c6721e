package detections

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"

	"github.com/crater-detection/yolo-api/models"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	gray = color.NRGBA{R: 90, G: 90, B: 90, A: 255}
)

func filled(r image.Rectangle, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(r)
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestAnnotate_NoDetectionsLeavesImageUnchanged(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = byte(i * 7)
	}
	before := append([]byte(nil), img.Pix...)

	Annotate(img, nil, DefaultStyle())
	require.True(t, bytes.Equal(before, img.Pix))

	Annotate(img, []models.Detection{}, DefaultStyle())
	require.True(t, bytes.Equal(before, img.Pix))
}

func TestAnnotate_DrawsBoxAndLabel(t *testing.T) {
	img := filled(image.Rect(0, 0, 100, 100), gray)
	det := models.Detection{Box: image.Rect(20, 30, 50, 60), Confidence: 0.9}

	Annotate(img, []models.Detection{det}, DefaultStyle())

	require.Equal(t, red, img.NRGBAAt(35, 59), "bottom edge")
	require.Equal(t, red, img.NRGBAAt(20, 45), "left edge")
	require.Equal(t, red, img.NRGBAAt(49, 45), "right edge")
	require.Equal(t, gray, img.NRGBAAt(35, 45), "interior")
	require.Equal(t, gray, img.NRGBAAt(80, 80), "outside")

	var black, white int
	for y := 17; y < 29; y++ {
		for x := 20; x < 48; x++ {
			switch img.NRGBAAt(x, y) {
			case color.NRGBA{A: 255}:
				black++
			case color.NRGBA{R: 255, G: 255, B: 255, A: 255}:
				white++
			}
		}
	}
	require.Greater(t, black, 0, "label background")
	require.Greater(t, white, 0, "label text")
}

func TestAnnotate_NeverWritesOutsideBounds(t *testing.T) {
	green := color.NRGBA{G: 255, A: 255}
	canvas := filled(image.Rect(0, 0, 100, 100), green)
	area := image.Rect(10, 10, 74, 74)
	sub := canvas.SubImage(area).(*image.NRGBA)

	dets := []models.Detection{
		{Box: area, Confidence: 0.99},
		{Box: image.Rect(60, 10, 90, 40), Confidence: 0.5},
		{Box: image.Rect(10, 70, 30, 74), Confidence: 0.3},
		{Box: image.Rect(80, 80, 95, 95), Confidence: 0.7},
	}
	Annotate(sub, dets, DefaultStyle())

	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if image.Pt(x, y).In(area) {
				continue
			}
			require.Equal(t, green, canvas.NRGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestLabelRect_NeverNegative(t *testing.T) {
	bounds := image.Rect(0, 0, 64, 64)
	points := []image.Point{{0, 0}, {63, 5}, {30, 30}, {0, 63}, {60, 63}, {-5, -5}, {70, 70}}

	for _, pt := range points {
		r := labelRect(basicfont.Face7x13, "0.87", pt, bounds)
		require.GreaterOrEqual(t, r.Dx(), 0, "point %v", pt)
		require.GreaterOrEqual(t, r.Dy(), 0, "point %v", pt)
		if !r.Empty() {
			require.True(t, r.In(bounds), "point %v rect %v", pt, r)
		}
	}
}

func TestLabelRect_SpansGlyphsAndDescent(t *testing.T) {
	r := labelRect(basicfont.Face7x13, "0.87", image.Pt(20, 40), image.Rect(0, 0, 100, 100))
	require.Equal(t, image.Rect(20, 40-11-2, 20+4*7, 42), r)
}

package detections

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/crater-detection/yolo-api/models"
)

// Style controls how detections are drawn.
type Style struct {
	BoxColor        color.Color
	BoxThickness    int
	TextColor       color.Color
	LabelBackground color.Color
	Face            font.Face
}

func DefaultStyle() Style {
	return Style{
		BoxColor:        color.NRGBA{R: 255, A: 255},
		BoxThickness:    3,
		TextColor:       color.White,
		LabelBackground: color.Black,
		Face:            basicfont.Face7x13,
	}
}

// Annotate draws a rectangle and a confidence label for every detection.
// Nothing outside img's bounds is touched, and with no detections img is left
// unchanged.
func Annotate(img draw.Image, dets []models.Detection, style Style) {
	bounds := img.Bounds()
	for _, det := range dets {
		box := det.Box.Intersect(bounds)
		if box.Empty() {
			continue
		}
		drawBox(img, box, style.BoxColor, style.BoxThickness)
		drawLabel(img, fmt.Sprintf("%.2f", det.Confidence), box.Min, style)
	}
}

// drawBox strokes the outline of box with lines centered on its edge pixels.
func drawBox(img draw.Image, box image.Rectangle, c color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	lo := thickness / 2
	hi := thickness - lo

	left, top := box.Min.X, box.Min.Y
	right, bottom := box.Max.X-1, box.Max.Y-1

	edges := []image.Rectangle{
		image.Rect(left-lo, top-lo, right+hi, top+hi),
		image.Rect(left-lo, bottom-lo, right+hi, bottom+hi),
		image.Rect(left-lo, top-lo, left+hi, bottom+hi),
		image.Rect(right-lo, top-lo, right+hi, bottom+hi),
	}

	src := image.NewUniform(c)
	for _, edge := range edges {
		edge = edge.Intersect(img.Bounds())
		if edge.Empty() {
			continue
		}
		draw.Draw(img, edge, src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text with its baseline origin at pt on a filled background.
func drawLabel(img draw.Image, text string, pt image.Point, style Style) {
	bg := labelRect(style.Face, text, pt, img.Bounds())
	if !bg.Empty() {
		draw.Draw(img, bg, image.NewUniform(style.LabelBackground), image.Point{}, draw.Src)
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(style.TextColor),
		Face: style.Face,
		Dot:  fixed.P(pt.X, pt.Y),
	}
	d.DrawString(text)
}

// labelRect is the background box behind a label: from the top of the glyphs
// to below the baseline by the descent, clipped to bounds.
func labelRect(face font.Face, text string, pt image.Point, bounds image.Rectangle) image.Rectangle {
	metrics := face.Metrics()
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := metrics.Ascent.Ceil()
	baseline := metrics.Descent.Ceil()

	bg := image.Rect(pt.X, pt.Y-textHeight-baseline, pt.X+textWidth, pt.Y+baseline)
	return bg.Intersect(bounds)
}

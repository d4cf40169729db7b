// Package overlay draws detection results onto camera frames.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/vkadlec/face-attendance/internal/recognizer"
)

const (
	boxThickness = 3
	labelPadding = 4
)

var (
	knownColor   = color.RGBA{0, 200, 80, 255}  // green
	unknownColor = color.RGBA{220, 60, 40, 255} // red
	labelText    = color.RGBA{255, 255, 255, 255}
)

// DrawDetections decodes a JPEG frame, draws a bounding box and name tag for
// each detection, and re-encodes the frame as JPEG.
func DrawDetections(frame []byte, detections []recognizer.Detection) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, det := range detections {
		if len(det.BBox) != 4 {
			continue
		}
		rect := image.Rect(
			int(det.BBox[0]), int(det.BBox[1]),
			int(det.BBox[2]), int(det.BBox[3]),
		).Intersect(img.Bounds())
		if rect.Empty() {
			continue
		}

		c := unknownColor
		if det.Known() {
			c = knownColor
		}

		drawRect(img, rect, c)
		drawLabel(img, rect, det.Label, c)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// drawRect draws a rectangle outline.
func drawRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	for t := 0; t < boxThickness; t++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			setPixel(img, x, rect.Min.Y+t, c)
			setPixel(img, x, rect.Max.Y-1-t, c)
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			setPixel(img, rect.Min.X+t, y, c)
			setPixel(img, rect.Max.X-1-t, y, c)
		}
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawLabel renders the name tag above the box, or inside its top edge when
// there is no room above.
func drawLabel(img *image.RGBA, rect image.Rectangle, label string, bg color.RGBA) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, label).Ceil()
	tagHeight := face.Metrics().Height.Ceil() + 2*labelPadding

	tag := image.Rect(
		rect.Min.X,
		rect.Min.Y-tagHeight,
		rect.Min.X+textWidth+2*labelPadding,
		rect.Min.Y,
	)
	if tag.Min.Y < img.Bounds().Min.Y {
		tag = tag.Add(image.Pt(0, tagHeight))
	}
	tag = tag.Intersect(img.Bounds())
	draw.Draw(img, tag, &image.Uniform{bg}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{labelText},
		Face: face,
		Dot: fixed.P(
			tag.Min.X+labelPadding,
			tag.Min.Y+labelPadding+face.Metrics().Ascent.Ceil(),
		),
	}
	d.DrawString(label)
}

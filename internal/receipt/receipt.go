// Package receipt renders the printable receipt handed to a client at intake.
package receipt

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/erazemk/hramba/internal/model"
)

// Receipt sizes in pixels, measured as the width of the QR symbol.
const (
	MinSize     = 128
	MaxSize     = 1024
	DefaultSize = 256
)

// labelScale is the width of the QR symbol per unit of label magnification.
const labelScale = 160

const (
	lineHeight = 15
	labelPad   = 4
)

// Render draws the QR symbol for item's code with the code, department and
// expected return date printed underneath, and encodes it as PNG. size is
// clamped to [MinSize, MaxSize]; zero means DefaultSize.
func Render(item *model.Item, size int) ([]byte, error) {
	if size == 0 {
		size = DefaultSize
	}
	size = min(max(size, MinSize), MaxSize)

	qr, err := qrcode.New(item.QRCode, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encoding qr code: %w", err)
	}
	symbol := qr.Image(size)
	width := symbol.Bounds().Dx()

	lines := []string{
		item.QRCode,
		string(item.Department),
		"Return by " + item.ExpectedReturnDate,
	}
	scale := max(1, width/labelScale)
	label := renderLabel(lines, width/scale)
	labelHeight := label.Bounds().Dy() * scale

	canvas := image.NewRGBA(image.Rect(0, 0, width, symbol.Bounds().Dy()+labelHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, symbol.Bounds(), symbol, symbol.Bounds().Min, draw.Src)

	dst := image.Rect(0, symbol.Bounds().Dy(), label.Bounds().Dx()*scale, canvas.Bounds().Dy())
	draw.NearestNeighbor.Scale(canvas, dst, label, label.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// renderLabel draws lines centered on a white strip width pixels wide.
func renderLabel(lines []string, width int) *image.RGBA {
	face := basicfont.Face7x13
	img := image.NewRGBA(image.Rect(0, 0, width, len(lines)*lineHeight+2*labelPad))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	for i, line := range lines {
		w := d.MeasureString(line).Ceil()
		x := max(0, (width-w)/2)
		y := labelPad + i*lineHeight + face.Ascent
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
	}
	return img
}

package library

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"os"

	// decoders for the poster formats found next to videos
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// box the listing previews must fit inside
const (
	defaultThumbWidth  = 280
	defaultThumbHeight = 180
)

// Thumbnailer scales poster images down to listing-sized previews. PNG
// output keeps the alpha channel intact.
type Thumbnailer struct {
	Width  int
	Height int
}

func NewThumbnailer() *Thumbnailer {
	return &Thumbnailer{
		Width:  defaultThumbWidth,
		Height: defaultThumbHeight,
	}
}

// Render returns the scaled preview as base64-encoded PNG, ready for
// embedding in a JSON listing.
func (t *Thumbnailer) Render(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return "", err
	}

	bounds := src.Bounds()
	width, height := fitBox(bounds.Dx(), bounds.Dy(), t.Width, t.Height)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// fitBox shrinks (w, h) to fit inside (maxW, maxH) keeping aspect ratio,
// never scaling up.
func fitBox(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}

	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)

	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	width := int(float64(w) * scale)
	height := int(float64(h) * scale)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	return width, height
}

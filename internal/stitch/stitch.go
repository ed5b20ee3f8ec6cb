// Package stitch composes positioned viewport tiles into one full-page
// image. It is pure: no sessions, no I/O, no knowledge of where tiles
// came from or where the result goes.
package stitch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// ErrNoTiles is returned when zero tiles decode successfully.
var ErrNoTiles = errors.New("no tiles decoded")

// Tile is one captured viewport fragment positioned on the grid.
type Tile struct {
	Row  int
	Col  int
	Data []byte // encoded raster, PNG or JPEG
}

// Layout describes the composition surface and tile placement.
type Layout struct {
	FullWidth  int
	FullHeight int
	TileWidth  int
	TileHeight int

	// Scale is the device pixel ratio of the tile rasters. Tiles are
	// downscaled by this factor before placement so the canvas stays in
	// logical pixels. 0 is treated as 1.
	Scale float64
}

// background fills gaps left by missing or undecodable tiles, so the
// output never has transparent holes.
var background = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Result is a finished composition.
type Result struct {
	Image *image.NRGBA

	// Skipped counts tiles that failed to decode and were left as
	// background-colored gaps.
	Skipped int
}

// Compose draws every tile onto a FullWidth×FullHeight canvas at its
// grid offset. Tiles are placed in (row, col) order regardless of the
// order they are supplied in, so output is deterministic. Individual
// decode failures are skipped; only zero decoded tiles is an error.
func Compose(tiles []Tile, layout Layout) (*Result, error) {
	if layout.FullWidth <= 0 || layout.FullHeight <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", layout.FullWidth, layout.FullHeight)
	}

	ordered := make([]Tile, len(tiles))
	copy(ordered, tiles)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Row != ordered[j].Row {
			return ordered[i].Row < ordered[j].Row
		}
		return ordered[i].Col < ordered[j].Col
	})

	canvas := imaging.New(layout.FullWidth, layout.FullHeight, background)

	scale := layout.Scale
	if scale == 0 {
		scale = 1
	}

	decoded := 0
	skipped := 0
	for _, t := range ordered {
		img, err := imaging.Decode(bytes.NewReader(t.Data))
		if err != nil {
			skipped++
			continue
		}
		if scale != 1 {
			img = normalize(img, scale)
		}
		offset := image.Pt(t.Col*layout.TileWidth, t.Row*layout.TileHeight)
		canvas = imaging.Paste(canvas, img, offset)
		decoded++
	}

	if decoded == 0 {
		return nil, ErrNoTiles
	}
	return &Result{Image: canvas, Skipped: skipped}, nil
}

// EncodePNG serializes a composed image.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// normalize scales a device-pixel tile back down to logical pixels.
func normalize(img image.Image, scale float64) image.Image {
	b := img.Bounds()
	w := int(float64(b.Dx()) / scale)
	h := int(float64(b.Dy()) / scale)
	if w <= 0 || h <= 0 {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

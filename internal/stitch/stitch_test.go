package stitch

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func pngTile(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode tile: %v", err)
	}
	return buf.Bytes()
}

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	green = color.NRGBA{G: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
	gray  = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
)

func fullGrid(t *testing.T) ([]Tile, Layout) {
	t.Helper()
	layout := Layout{FullWidth: 20, FullHeight: 20, TileWidth: 10, TileHeight: 10, Scale: 1}
	tiles := []Tile{
		{Row: 0, Col: 0, Data: pngTile(t, 10, 10, red)},
		{Row: 0, Col: 1, Data: pngTile(t, 10, 10, green)},
		{Row: 1, Col: 0, Data: pngTile(t, 10, 10, blue)},
		{Row: 1, Col: 1, Data: pngTile(t, 10, 10, gray)},
	}
	return tiles, layout
}

func TestCompose_PlacesTilesByPosition(t *testing.T) {
	tiles, layout := fullGrid(t)

	res, err := Compose(tiles, layout)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if res.Skipped != 0 {
		t.Errorf("skipped = %d, want 0", res.Skipped)
	}

	b := res.Image.Bounds()
	if b.Dx() != 20 || b.Dy() != 20 {
		t.Fatalf("canvas = %dx%d, want 20x20", b.Dx(), b.Dy())
	}

	checks := []struct {
		x, y int
		want color.NRGBA
	}{
		{5, 5, red},
		{15, 5, green},
		{5, 15, blue},
		{15, 15, gray},
	}
	for _, c := range checks {
		if got := res.Image.NRGBAAt(c.x, c.y); got != c.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", c.x, c.y, got, c.want)
		}
	}
}

func TestCompose_DeterministicRegardlessOfOrder(t *testing.T) {
	tiles, layout := fullGrid(t)

	first, err := Compose(tiles, layout)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	// Reverse arrival order; output must be pixel-identical.
	reversed := make([]Tile, len(tiles))
	for i, tile := range tiles {
		reversed[len(tiles)-1-i] = tile
	}
	second, err := Compose(reversed, layout)
	if err != nil {
		t.Fatalf("compose reversed: %v", err)
	}

	a, err := EncodePNG(first.Image)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := EncodePNG(second.Image)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("composed output differs when tile order changes")
	}
}

func TestCompose_MissingTileLeavesBackground(t *testing.T) {
	tiles, layout := fullGrid(t)
	// Drop (1,1); its footprint must stay background-colored.
	tiles = tiles[:3]

	res, err := Compose(tiles, layout)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if res.Skipped != 0 {
		t.Errorf("skipped = %d, want 0 (missing is not a decode failure)", res.Skipped)
	}

	for _, p := range []image.Point{{11, 11}, {15, 15}, {19, 19}} {
		if got := res.Image.NRGBAAt(p.X, p.Y); got != background {
			t.Errorf("gap pixel (%d,%d) = %v, want background %v", p.X, p.Y, got, background)
		}
	}
	if got := res.Image.NRGBAAt(5, 5); got != red {
		t.Errorf("tile pixel = %v, want %v", got, red)
	}
}

func TestCompose_SkipsUndecodableTiles(t *testing.T) {
	tiles, layout := fullGrid(t)
	tiles[3].Data = []byte("not a png")

	res, err := Compose(tiles, layout)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
	if got := res.Image.NRGBAAt(15, 15); got != background {
		t.Errorf("undecodable tile region = %v, want background", got)
	}
}

func TestCompose_NoDecodableTiles(t *testing.T) {
	layout := Layout{FullWidth: 10, FullHeight: 10, TileWidth: 10, TileHeight: 10}

	if _, err := Compose(nil, layout); err != ErrNoTiles {
		t.Errorf("empty set: err = %v, want ErrNoTiles", err)
	}

	garbage := []Tile{{Row: 0, Col: 0, Data: []byte{0x00, 0x01}}}
	if _, err := Compose(garbage, layout); err != ErrNoTiles {
		t.Errorf("garbage set: err = %v, want ErrNoTiles", err)
	}
}

func TestCompose_NormalizesDevicePixels(t *testing.T) {
	// A 20x20 device-pixel tile at scale 2 covers 10x10 logical pixels.
	layout := Layout{FullWidth: 20, FullHeight: 10, TileWidth: 10, TileHeight: 10, Scale: 2}
	tiles := []Tile{
		{Row: 0, Col: 0, Data: pngTile(t, 20, 20, red)},
		{Row: 0, Col: 1, Data: pngTile(t, 20, 20, blue)},
	}

	res, err := Compose(tiles, layout)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if got := res.Image.NRGBAAt(5, 5); got != red {
		t.Errorf("left tile pixel = %v, want %v", got, red)
	}
	if got := res.Image.NRGBAAt(15, 5); got != blue {
		t.Errorf("right tile pixel = %v, want %v", got, blue)
	}
}

func TestCompose_InvalidCanvas(t *testing.T) {
	if _, err := Compose(nil, Layout{FullWidth: 0, FullHeight: 10}); err == nil {
		t.Error("expected error for zero-width canvas")
	}
}

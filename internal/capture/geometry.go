// Package capture implements the full-page capture pipeline: the
// foreground agent that walks the document through a grid of scroll
// offsets, and the background coordinator that owns the capture session
// and serializes access to the rate-limited screenshot primitive.
package capture

import (
	"github.com/nextlevelbuilder/pagesnap/pkg/protocol"
)

// DefaultTileScale shrinks effective tiles to 90% of the viewport.
// Rounding between logical and device pixels can shift a capture by a
// pixel or two; undersized tiles overlap slightly instead of leaving
// gaps in the stitched output.
const DefaultTileScale = 0.9

// ComputeGeometry derives the capture grid from measured page metrics.
// tileScale outside (0, 1] falls back to DefaultTileScale.
func ComputeGeometry(m protocol.PageMetrics, tileScale float64) protocol.Geometry {
	if tileScale <= 0 || tileScale > 1 {
		tileScale = DefaultTileScale
	}

	tw := int(float64(m.ViewportWidth) * tileScale)
	th := int(float64(m.ViewportHeight) * tileScale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	fw := m.FullWidth
	fh := m.FullHeight
	if fw < 1 {
		fw = tw
	}
	if fh < 1 {
		fh = th
	}

	scale := m.DevicePixelRatio
	if scale <= 0 {
		scale = 1
	}

	return protocol.Geometry{
		FullWidth:  fw,
		FullHeight: fh,
		TileWidth:  tw,
		TileHeight: th,
		Columns:    ceilDiv(fw, tw),
		Rows:       ceilDiv(fh, th),
		Scale:      scale,
	}
}

// Positions enumerates the grid in row-major order.
func Positions(g protocol.Geometry) []protocol.Position {
	out := make([]protocol.Position, 0, g.Rows*g.Columns)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Columns; col++ {
			out = append(out, protocol.Position{Row: row, Col: col})
		}
	}
	return out
}

// PixelOffset is the document coordinate of a tile's top-left corner.
func PixelOffset(g protocol.Geometry, pos protocol.Position) (x, y int) {
	return pos.Col * g.TileWidth, pos.Row * g.TileHeight
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

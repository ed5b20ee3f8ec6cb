package protocol

// PageMetrics is one measurement of the document, taken by the page
// geometry/scroll provider. All values are logical (CSS) pixels except
// DevicePixelRatio.
type PageMetrics struct {
	FullWidth  int `json:"fullWidth"`
	FullHeight int `json:"fullHeight"`

	ViewportWidth  int `json:"viewportWidth"`
	ViewportHeight int `json:"viewportHeight"`

	ScrollX int `json:"scrollX"`
	ScrollY int `json:"scrollY"`

	DevicePixelRatio float64 `json:"devicePixelRatio"`
}

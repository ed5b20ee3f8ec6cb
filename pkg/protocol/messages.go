// Package protocol defines the message contract between the foreground
// capture agent and the background capture coordinator. It is the only
// surface the two sides share; neither imports the other's internals.
package protocol

// Destination selects where a finished capture is handed off.
type Destination string

const (
	// DestinationLocal saves the stitched image to the local output directory.
	DestinationLocal Destination = "local"

	// DestinationUpload hands the stitched image to the remote upload collaborator.
	DestinationUpload Destination = "upload"
)

// Position identifies a tile by grid coordinates, not capture order.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Geometry describes the capture grid for one session. Computed once by
// the agent after the lazy-load pass; immutable for the session.
type Geometry struct {
	FullWidth  int `json:"fullWidth"`
	FullHeight int `json:"fullHeight"`
	TileWidth  int `json:"tileWidth"`
	TileHeight int `json:"tileHeight"`
	Columns    int `json:"columns"`
	Rows       int `json:"rows"`

	// Scale is the device pixel ratio of the captured rasters. Tiles are
	// normalized back to logical pixels during stitching when Scale != 1.
	Scale float64 `json:"scale"`
}

// PageInfo carries page metadata for upload hand-off and filenames.
type PageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// BeginSession starts a new capture session. Rejected with SESSION_BUSY
// if another session is active.
type BeginSession struct {
	Geometry    Geometry    `json:"geometry"`
	TargetID    string      `json:"targetId"`
	Destination Destination `json:"destination"`
	Page        PageInfo    `json:"page"`
}

// CaptureTile asks the coordinator to capture exactly one tile at the
// document position implied by Position. The agent must have scrolled
// the document there before sending this.
type CaptureTile struct {
	Position Position `json:"position"`
}

// TileResult reports one capture attempt. OK=false is recoverable: the
// agent decides whether to retry.
type TileResult struct {
	Position Position `json:"position"`
	OK       bool     `json:"ok"`
}

// OutcomeStatus is the terminal status of a session.
type OutcomeStatus string

const (
	StatusCompleted OutcomeStatus = "completed"
	StatusFailed    OutcomeStatus = "failed"
)

// SessionOutcome is the single terminal message for a session, delivered
// exactly once whether the session completed or failed.
type SessionOutcome struct {
	Status OutcomeStatus `json:"status"`

	// SkippedTiles counts grid positions absent from the stitched output
	// (never captured, or captured but undecodable).
	SkippedTiles int `json:"skippedTiles,omitempty"`

	// Artifact references the stitched image: a local file path or a
	// remote asset reference, depending on destination.
	Artifact string `json:"artifact,omitempty"`

	// Reason is set when Status is failed.
	Reason string `json:"reason,omitempty"`
}

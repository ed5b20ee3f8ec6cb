package capture

import (
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/pagesnap/pkg/protocol"
)

// State is the lifecycle state of a capture session.
type State string

const (
	StateCapturing State = "capturing"
	StateStitching State = "stitching"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Active reports whether the state is non-terminal. At most one session
// may be active at a time.
func (s State) Active() bool {
	switch s {
	case StateCapturing, StateStitching:
		return true
	}
	return false
}

// Tile is one accepted viewport fragment. Immutable once accepted.
type Tile struct {
	Position protocol.Position
	Data     []byte // encoded raster for one viewport-sized region
	Attempt  int    // capture attempts that produced this tile, 1 = first try
}

// Session is the unit of work for one full-page capture. It is owned by
// the coordinator and mutated only under the coordinator's lock.
type Session struct {
	ID          uuid.UUID
	State       State
	Geometry    protocol.Geometry
	TargetID    string
	Destination protocol.Destination
	Page        protocol.PageInfo
	StartedAt   time.Time

	tiles    map[protocol.Position]Tile
	arrival  []protocol.Position
	attempts map[protocol.Position]int
	failures map[protocol.Position]int
}

func newSession(req protocol.BeginSession) *Session {
	return &Session{
		ID:          uuid.New(),
		State:       StateCapturing,
		Geometry:    req.Geometry,
		TargetID:    req.TargetID,
		Destination: req.Destination,
		Page:        req.Page,
		StartedAt:   time.Now(),
		tiles:       make(map[protocol.Position]Tile),
		attempts:    make(map[protocol.Position]int),
		failures:    make(map[protocol.Position]int),
	}
}

// nextAttempt bumps and returns the attempt counter for a position.
func (s *Session) nextAttempt(pos protocol.Position) int {
	s.attempts[pos]++
	return s.attempts[pos]
}

// accept records a tile, last-write-wins per position. A retry that
// succeeds after a prior partial result replaces it.
func (s *Session) accept(t Tile) {
	if _, seen := s.tiles[t.Position]; !seen {
		s.arrival = append(s.arrival, t.Position)
	}
	s.tiles[t.Position] = t
}

func (s *Session) recordFailure(pos protocol.Position) {
	s.failures[pos]++
}

// Tiles returns accepted tiles in arrival order. Arrival order carries
// no semantic meaning; the stitcher re-sorts by grid position.
func (s *Session) Tiles() []Tile {
	out := make([]Tile, 0, len(s.arrival))
	for _, pos := range s.arrival {
		out = append(out, s.tiles[pos])
	}
	return out
}

// TileCount is the number of distinct positions with an accepted tile.
func (s *Session) TileCount() int {
	return len(s.tiles)
}

// FailureCount is the number of positions that saw failures and never
// produced a tile.
func (s *Session) FailureCount() int {
	n := 0
	for pos := range s.failures {
		if _, ok := s.tiles[pos]; !ok {
			n++
		}
	}
	return n
}

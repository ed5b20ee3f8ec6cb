package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/pagesnap/internal/stitch"
	"github.com/nextlevelbuilder/pagesnap/pkg/protocol"
)

// Capturer is the rate-limited tile capture primitive: it returns a
// raster of whatever is currently visible in the viewport. The host
// platform throttles it; callers must not invoke it concurrently.
type Capturer interface {
	CaptureViewport(ctx context.Context) ([]byte, error)
}

// CaptureSource resolves the capture primitive for a target context.
type CaptureSource interface {
	Capturer(targetID string) (Capturer, error)
}

// SourceFunc adapts a function to CaptureSource.
type SourceFunc func(targetID string) (Capturer, error)

func (f SourceFunc) Capturer(targetID string) (Capturer, error) { return f(targetID) }

// Persister is the local persistence collaborator: a user-facing save
// of a finished raster under a suggested filename.
type Persister interface {
	Save(ctx context.Context, data []byte, filename string) (string, error)
}

// Uploader is the remote upload collaborator. It receives the finished
// raster plus page metadata and returns an asset reference; everything
// past that boundary belongs to the wider application.
type Uploader interface {
	Upload(ctx context.Context, data []byte, page protocol.PageInfo) (string, error)
}

// Record summarizes a terminal session for the history ledger.
type Record struct {
	SessionID string
	URL       string
	Title     string
	State     State
	Columns   int
	Rows      int
	Captured  int
	Skipped   int
	Artifact  string
	Duration  time.Duration
}

// Recorder observes terminal sessions. Recording is best effort; a
// recorder error never fails the session.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// CoordinatorConfig tunes the coordinator's use of the primitive.
type CoordinatorConfig struct {
	// Quota is the sustained rate allowed against the capture
	// primitive, in captures per second.
	Quota float64

	// CaptureTimeout bounds one primitive call. An attempt that exceeds
	// it counts as a failed capture, eligible for the agent's retry.
	CaptureTimeout time.Duration
}

// DefaultCoordinatorConfig matches the Chrome captureVisibleTab quota
// of roughly two calls per second.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Quota:          2,
		CaptureTimeout: 10 * time.Second,
	}
}

// Coordinator owns the single mutable capture session and is the sole
// serialization point for the capture primitive. The agent may have
// several tile requests outstanding; excess requests queue behind the
// coordinator's one-at-a-time access to the primitive.
type Coordinator struct {
	mu       sync.Mutex // guards session and capturer
	session  *Session
	capturer Capturer

	primMu  sync.Mutex // serializes entry to the capture primitive
	limiter *rate.Limiter

	source   CaptureSource
	store    Persister
	uploader Uploader
	recorder Recorder
	cfg      CoordinatorConfig
	logger   *slog.Logger

	// filename builds the suggested name for local saves.
	filename func(page protocol.PageInfo) string
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPersister sets the local persistence collaborator.
func WithPersister(p Persister) CoordinatorOption {
	return func(c *Coordinator) { c.store = p }
}

// WithUploader sets the remote upload collaborator.
func WithUploader(u Uploader) CoordinatorOption {
	return func(c *Coordinator) { c.uploader = u }
}

// WithRecorder sets the history recorder.
func WithRecorder(r Recorder) CoordinatorOption {
	return func(c *Coordinator) { c.recorder = r }
}

// WithCoordinatorLogger sets a custom logger.
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// WithFilename sets the suggested-filename builder for local saves.
func WithFilename(f func(page protocol.PageInfo) string) CoordinatorOption {
	return func(c *Coordinator) { c.filename = f }
}

// NewCoordinator creates a coordinator bound to a capture source.
func NewCoordinator(source CaptureSource, cfg CoordinatorConfig, opts ...CoordinatorOption) *Coordinator {
	if cfg.Quota <= 0 {
		cfg.Quota = DefaultCoordinatorConfig().Quota
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultCoordinatorConfig().CaptureTimeout
	}
	c := &Coordinator{
		source:  source,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.Quota), 1),
		logger:  slog.Default(),
		filename: func(page protocol.PageInfo) string {
			return "capture.png"
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Begin starts a new session. It fails with SESSION_BUSY while another
// session is active; a second begin is rejected, never queued.
func (c *Coordinator) Begin(ctx context.Context, req protocol.BeginSession) error {
	if req.Geometry.Columns < 1 || req.Geometry.Rows < 1 {
		return fmt.Errorf("invalid geometry: %dx%d grid", req.Geometry.Columns, req.Geometry.Rows)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.State.Active() {
		return protocol.ErrSessionBusy
	}

	capturer, err := c.source.Capturer(req.TargetID)
	if err != nil {
		return fmt.Errorf("resolve capturer for %q: %w", req.TargetID, err)
	}

	c.session = newSession(req)
	c.capturer = capturer

	c.logger.Info("session.started",
		"session", c.session.ID,
		"target", req.TargetID,
		"grid", fmt.Sprintf("%dx%d", req.Geometry.Columns, req.Geometry.Rows),
		"destination", req.Destination)
	return nil
}

// CaptureTile invokes the primitive exactly once and records the result.
// A primitive failure is reported as OK=false, not an error; retrying is
// the agent's decision.
func (c *Coordinator) CaptureTile(ctx context.Context, req protocol.CaptureTile) (protocol.TileResult, error) {
	c.mu.Lock()
	s := c.session
	if s == nil || s.State != StateCapturing {
		c.mu.Unlock()
		return protocol.TileResult{}, protocol.ErrNoActiveSession
	}
	id := s.ID
	attempt := s.nextAttempt(req.Position)
	capturer := c.capturer
	c.mu.Unlock()

	data, err := c.captureOne(ctx, capturer)

	c.mu.Lock()
	defer c.mu.Unlock()

	// The session may have been aborted while the primitive ran.
	if c.session == nil || c.session.ID != id || c.session.State != StateCapturing {
		return protocol.TileResult{}, protocol.ErrNoActiveSession
	}

	if err != nil {
		c.session.recordFailure(req.Position)
		c.logger.Warn("capture.tile_failed",
			"session", id,
			"row", req.Position.Row, "col", req.Position.Col,
			"attempt", attempt,
			"error", err)
		return protocol.TileResult{Position: req.Position, OK: false}, nil
	}

	c.session.accept(Tile{Position: req.Position, Data: data, Attempt: attempt})
	return protocol.TileResult{Position: req.Position, OK: true}, nil
}

// captureOne is the single serialization point for the primitive: one
// in-flight call, paced by the quota limiter, bounded by the per-call
// timeout.
func (c *Coordinator) captureOne(ctx context.Context, capturer Capturer) ([]byte, error) {
	c.primMu.Lock()
	defer c.primMu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, c.cfg.CaptureTimeout)
	defer cancel()
	return capturer.CaptureViewport(cctx)
}

// Finish stitches the accumulated tiles and hands the result to exactly
// one of the persistence or upload collaborators, then clears the
// session. The returned outcome is the session's single terminal
// message. Zero accepted tiles is always a hard failure.
func (c *Coordinator) Finish(ctx context.Context) (protocol.SessionOutcome, error) {
	c.mu.Lock()
	s := c.session
	if s == nil || s.State != StateCapturing {
		c.mu.Unlock()
		return protocol.SessionOutcome{}, protocol.ErrNoActiveSession
	}
	s.State = StateStitching
	tiles := s.Tiles()
	geom := s.Geometry
	c.mu.Unlock()

	if len(tiles) == 0 {
		return c.conclude(ctx, s, protocol.SessionOutcome{
			Status: protocol.StatusFailed,
			Reason: protocol.CodeStitchError + ": no tiles captured",
		}, 0, 0), nil
	}

	if n := s.FailureCount(); n > 0 {
		c.logger.Warn("session.partial", "session", s.ID, "failed_tiles", n)
	}

	res, err := stitch.Compose(toStitchTiles(tiles), stitch.Layout{
		FullWidth:  geom.FullWidth,
		FullHeight: geom.FullHeight,
		TileWidth:  geom.TileWidth,
		TileHeight: geom.TileHeight,
		Scale:      geom.Scale,
	})
	if err != nil {
		return c.conclude(ctx, s, protocol.SessionOutcome{
			Status: protocol.StatusFailed,
			Reason: protocol.CodeStitchError + ": " + err.Error(),
		}, 0, 0), nil
	}

	// Skipped counts every grid position absent from the output:
	// positions never captured plus tiles that failed to decode.
	decoded := len(tiles) - res.Skipped
	skipped := geom.Columns*geom.Rows - decoded

	data, err := stitch.EncodePNG(res.Image)
	if err != nil {
		return c.conclude(ctx, s, protocol.SessionOutcome{
			Status: protocol.StatusFailed,
			Reason: protocol.CodeStitchError + ": " + err.Error(),
		}, decoded, skipped), nil
	}

	artifact, err := c.deliver(ctx, s, data)
	if err != nil {
		code := protocol.CodePersistenceFailed
		if s.Destination == protocol.DestinationUpload {
			code = protocol.CodeUploadFailed
		}
		return c.conclude(ctx, s, protocol.SessionOutcome{
			Status: protocol.StatusFailed,
			Reason: code + ": " + err.Error(),
		}, decoded, skipped), nil
	}

	return c.conclude(ctx, s, protocol.SessionOutcome{
		Status:       protocol.StatusCompleted,
		SkippedTiles: skipped,
		Artifact:     artifact,
	}, decoded, skipped), nil
}

// deliver hands the stitched image to the collaborator selected at
// session start.
func (c *Coordinator) deliver(ctx context.Context, s *Session, data []byte) (string, error) {
	switch s.Destination {
	case protocol.DestinationUpload:
		if c.uploader == nil {
			return "", fmt.Errorf("no uploader configured")
		}
		return c.uploader.Upload(ctx, data, s.Page)
	default:
		if c.store == nil {
			return "", fmt.Errorf("no persister configured")
		}
		return c.store.Save(ctx, data, c.filename(s.Page))
	}
}

// conclude marks the session terminal, records it, drops the reference
// so a new session may begin, and returns the outcome.
func (c *Coordinator) conclude(ctx context.Context, s *Session, outcome protocol.SessionOutcome, captured, skipped int) protocol.SessionOutcome {
	c.mu.Lock()
	if outcome.Status == protocol.StatusCompleted {
		s.State = StateCompleted
	} else {
		s.State = StateFailed
	}
	if c.session == s {
		c.session = nil
		c.capturer = nil
	}
	c.mu.Unlock()

	duration := time.Since(s.StartedAt)
	if outcome.Status == protocol.StatusCompleted {
		c.logger.Info("session.completed",
			"session", s.ID,
			"skipped", outcome.SkippedTiles,
			"artifact", outcome.Artifact,
			"duration", duration)
	} else {
		c.logger.Error("session.failed", "session", s.ID, "reason", outcome.Reason)
	}

	if c.recorder != nil {
		rec := Record{
			SessionID: s.ID.String(),
			URL:       s.Page.URL,
			Title:     s.Page.Title,
			State:     s.State,
			Columns:   s.Geometry.Columns,
			Rows:      s.Geometry.Rows,
			Captured:  captured,
			Skipped:   skipped,
			Artifact:  outcome.Artifact,
			Duration:  duration,
		}
		if err := c.recorder.Record(ctx, rec); err != nil {
			c.logger.Warn("history.record_failed", "session", s.ID, "error", err)
		}
	}
	return outcome
}

// Abort moves the session to Failed and clears it. Safe to call at any
// point, including on an already-terminal or absent session.
func (c *Coordinator) Abort(ctx context.Context, reason string) error {
	c.mu.Lock()
	s := c.session
	if s == nil || !s.State.Active() {
		c.mu.Unlock()
		return nil
	}
	s.State = StateFailed
	c.session = nil
	c.capturer = nil
	c.mu.Unlock()

	c.logger.Warn("session.aborted", "session", s.ID, "reason", reason)
	return nil
}

// ActiveSession reports whether a session is currently active, and its
// accepted tile count.
func (c *Coordinator) ActiveSession() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || !c.session.State.Active() {
		return false, 0
	}
	return true, c.session.TileCount()
}

func toStitchTiles(tiles []Tile) []stitch.Tile {
	out := make([]stitch.Tile, 0, len(tiles))
	for _, t := range tiles {
		out = append(out, stitch.Tile{Row: t.Position.Row, Col: t.Position.Col, Data: t.Data})
	}
	return out
}

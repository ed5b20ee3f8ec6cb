package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nextlevelbuilder/pagesnap/pkg/protocol"
)

// PageView is the agent's window onto the live document: the geometry
// and scroll provider plus control over transient UI. The agent mutates
// scroll position and overlay visibility, and must revert both on every
// exit path.
type PageView interface {
	Metrics(ctx context.Context) (protocol.PageMetrics, error)
	ScrollTo(ctx context.Context, x, y int) error
	HideOverlays(ctx context.Context) error
	RestoreOverlays(ctx context.Context) error
	Info(ctx context.Context) (protocol.PageInfo, error)
}

// SessionClient is the agent's view of the coordinator. Every call is a
// suspension point; the two sides share no memory.
type SessionClient interface {
	Begin(ctx context.Context, req protocol.BeginSession) error
	CaptureTile(ctx context.Context, req protocol.CaptureTile) (protocol.TileResult, error)
	Finish(ctx context.Context) (protocol.SessionOutcome, error)
	Abort(ctx context.Context, reason string) error
}

// AgentConfig tunes the foreground agent.
type AgentConfig struct {
	// TileScale is the fraction of the viewport covered by one tile.
	TileScale float64

	// Retry applies uniformly to every tile capture.
	Retry RetryPolicy

	// MaxInFlight bounds concurrent tile requests to the coordinator.
	MaxInFlight int

	// PrepareDelay is the pause at each step of the lazy-load pass.
	PrepareDelay time.Duration
}

// DefaultAgentConfig returns the standard tuning: 90% tiles, three
// requests in flight, 150ms lazy-load steps.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		TileScale:    DefaultTileScale,
		Retry:        DefaultRetryPolicy(),
		MaxInFlight:  3,
		PrepareDelay: 150 * time.Millisecond,
	}
}

func (c AgentConfig) normalize() AgentConfig {
	def := DefaultAgentConfig()
	if c.TileScale <= 0 || c.TileScale > 1 {
		c.TileScale = def.TileScale
	}
	c.Retry = c.Retry.normalize()
	if c.MaxInFlight < 1 {
		c.MaxInFlight = def.MaxInFlight
	}
	if c.PrepareDelay <= 0 {
		c.PrepareDelay = def.PrepareDelay
	}
	return c
}

// maxPrepareSteps caps the lazy-load pass on documents that keep
// growing as they load (infinite feeds).
const maxPrepareSteps = 400

// Agent drives one full-page capture from inside the viewed document:
// measure, prepare, walk the grid, finish.
type Agent struct {
	page   PageView
	client SessionClient
	cfg    AgentConfig
	logger *slog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAgent creates an agent for one document.
func NewAgent(page PageView, client SessionClient, cfg AgentConfig) *Agent {
	return &Agent{
		page:   page,
		client: client,
		cfg:    cfg.normalize(),
		logger: slog.Default(),
		sleep:  sleepCtx,
	}
}

// SetLogger replaces the default logger.
func (a *Agent) SetLogger(l *slog.Logger) { a.logger = l }

// MeasureAndPrepare records the current scroll position, walks the
// document top to bottom once to force deferred content to materialize,
// then re-measures. The post-pass measurements are authoritative: lazy
// content commonly grows the document. Returns the capture geometry and
// the origin scroll position to restore later; if the initial
// measurement fails the origin is zero and the document has not been
// scrolled.
func (a *Agent) MeasureAndPrepare(ctx context.Context) (protocol.Geometry, protocol.PageMetrics, error) {
	m, err := a.page.Metrics(ctx)
	if err != nil {
		return protocol.Geometry{}, protocol.PageMetrics{}, fmt.Errorf("measure page: %w", err)
	}
	origin := m

	step := m.ViewportHeight
	if step < 1 {
		step = 1
	}
	height := m.FullHeight
	for y, steps := 0, 0; y < height && steps < maxPrepareSteps; y, steps = y+step, steps+1 {
		if err := a.page.ScrollTo(ctx, 0, y); err != nil {
			return protocol.Geometry{}, origin, fmt.Errorf("prepare scroll: %w", err)
		}
		if err := a.sleep(ctx, a.cfg.PrepareDelay); err != nil {
			return protocol.Geometry{}, origin, err
		}
		// Lazy content may extend the document mid-pass.
		if cur, err := a.page.Metrics(ctx); err == nil && cur.FullHeight > height {
			height = cur.FullHeight
		}
	}

	m, err = a.page.Metrics(ctx)
	if err != nil {
		return protocol.Geometry{}, origin, fmt.Errorf("re-measure page: %w", err)
	}

	geom := ComputeGeometry(m, a.cfg.TileScale)
	a.logger.Info("capture.measured",
		"full", fmt.Sprintf("%dx%d", geom.FullWidth, geom.FullHeight),
		"tile", fmt.Sprintf("%dx%d", geom.TileWidth, geom.TileHeight),
		"grid", fmt.Sprintf("%dx%d", geom.Columns, geom.Rows),
		"scale", geom.Scale)
	return geom, origin, nil
}

// Run executes the whole pipeline against one target. The original
// scroll position and any hidden overlays are restored on every exit
// path, success or failure.
func (a *Agent) Run(ctx context.Context, targetID string, dest protocol.Destination) (protocol.SessionOutcome, error) {
	geom, origin, err := a.MeasureAndPrepare(ctx)

	// Scroll restoration is owed even when measurement fails mid-pass:
	// the prepare pass has already moved the document. Zero origin
	// means the initial measurement itself failed and the document was
	// never touched.
	if err == nil || origin != (protocol.PageMetrics{}) {
		defer func() {
			rctx := context.WithoutCancel(ctx)
			if rerr := a.page.ScrollTo(rctx, origin.ScrollX, origin.ScrollY); rerr != nil {
				a.logger.Warn("capture.restore_scroll_failed", "error", rerr)
			}
		}()
	}

	if err != nil {
		return protocol.SessionOutcome{}, err
	}

	info, err := a.page.Info(ctx)
	if err != nil {
		a.logger.Warn("capture.page_info_failed", "error", err)
	}

	if err := a.client.Begin(ctx, protocol.BeginSession{
		Geometry:    geom,
		TargetID:    targetID,
		Destination: dest,
		Page:        info,
	}); err != nil {
		return protocol.SessionOutcome{}, err
	}

	if err := a.page.HideOverlays(ctx); err != nil {
		a.logger.Warn("capture.hide_overlays_failed", "error", err)
	}
	defer func() {
		rctx := context.WithoutCancel(ctx)
		if rerr := a.page.RestoreOverlays(rctx); rerr != nil {
			a.logger.Warn("capture.restore_overlays_failed", "error", rerr)
		}
	}()

	captured, err := a.CaptureGrid(ctx, geom)
	if err != nil {
		_ = a.client.Abort(context.WithoutCancel(ctx), err.Error())
		return protocol.SessionOutcome{}, err
	}

	if captured == 0 {
		// Finish with zero tiles: the coordinator reports the hard
		// failure as the session's single terminal outcome.
		a.logger.Error("capture.no_tiles")
	}

	return a.client.Finish(ctx)
}

// CaptureGrid walks the grid in row-major order: scroll, settle, request
// one tile. Requests run with bounded concurrency; tiles that fail the
// first pass are retried serially with grown settle delays. A tile that
// exhausts its retries is skipped, never fatal.
func (a *Agent) CaptureGrid(ctx context.Context, geom protocol.Geometry) (int, error) {
	positions := Positions(geom)
	sem := semaphore.NewWeighted(int64(a.cfg.MaxInFlight))

	var mu sync.Mutex
	captured := 0
	var failed []protocol.Position
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return captured
	}

	for _, pos := range positions {
		// Acquire before scrolling: the walk must not run ahead of the
		// in-flight budget, or early tiles get photographed at later
		// scroll offsets.
		if err := sem.Acquire(ctx, 1); err != nil {
			return count(), err
		}
		if err := a.scrollToTile(ctx, geom, pos); err != nil {
			sem.Release(1)
			return count(), err
		}
		if err := a.sleep(ctx, a.cfg.Retry.Delay(1)); err != nil {
			sem.Release(1)
			return count(), err
		}
		go func(pos protocol.Position) {
			defer sem.Release(1)
			res, err := a.client.CaptureTile(ctx, protocol.CaptureTile{Position: pos})
			mu.Lock()
			defer mu.Unlock()
			if err != nil || !res.OK {
				failed = append(failed, pos)
				return
			}
			captured++
		}(pos)
	}

	// Drain outstanding requests.
	if err := sem.Acquire(ctx, int64(a.cfg.MaxInFlight)); err != nil {
		return count(), err
	}
	sem.Release(int64(a.cfg.MaxInFlight))

	for _, pos := range failed {
		if ok, err := a.retryTile(ctx, geom, pos); err != nil {
			return captured, err
		} else if ok {
			captured++
		} else {
			a.logger.Warn("capture.tile_skipped", "row", pos.Row, "col", pos.Col)
		}
	}

	return captured, nil
}

// retryTile re-scrolls and re-requests one tile with growing settle
// delays until the retry budget is spent.
func (a *Agent) retryTile(ctx context.Context, geom protocol.Geometry, pos protocol.Position) (bool, error) {
	for attempt := 2; attempt <= a.cfg.Retry.MaxAttempts; attempt++ {
		if err := a.scrollToTile(ctx, geom, pos); err != nil {
			return false, err
		}
		if err := a.sleep(ctx, a.cfg.Retry.Delay(attempt)); err != nil {
			return false, err
		}
		res, err := a.client.CaptureTile(ctx, protocol.CaptureTile{Position: pos})
		if err != nil {
			return false, err
		}
		if res.OK {
			return true, nil
		}
	}
	return false, nil
}

func (a *Agent) scrollToTile(ctx context.Context, geom protocol.Geometry, pos protocol.Position) error {
	x, y := PixelOffset(geom, pos)
	if err := a.page.ScrollTo(ctx, x, y); err != nil {
		return fmt.Errorf("scroll to tile (%d,%d): %w", pos.Row, pos.Col, err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

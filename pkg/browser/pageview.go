package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nextlevelbuilder/pagesnap/pkg/protocol"
)

// PageView exposes one page to the capture pipeline: measurement,
// scrolling, transient UI control, and the viewport screenshot
// primitive. The primitive is rate-limited by Chrome; serializing calls
// to it is the coordinator's job, not this type's.
type PageView struct {
	page   *rod.Page
	logger *slog.Logger
}

const metricsJS = `() => ({
	fullWidth: Math.max(
		document.documentElement.scrollWidth,
		document.body ? document.body.scrollWidth : 0),
	fullHeight: Math.max(
		document.documentElement.scrollHeight,
		document.body ? document.body.scrollHeight : 0),
	viewportWidth: window.innerWidth,
	viewportHeight: window.innerHeight,
	scrollX: Math.round(window.scrollX),
	scrollY: Math.round(window.scrollY),
	dpr: window.devicePixelRatio || 1
})`

// Metrics measures the document and viewport.
func (v *PageView) Metrics(ctx context.Context) (protocol.PageMetrics, error) {
	res, err := v.page.Context(ctx).Eval(metricsJS)
	if err != nil {
		return protocol.PageMetrics{}, fmt.Errorf("measure page: %w", err)
	}
	val := res.Value
	return protocol.PageMetrics{
		FullWidth:        val.Get("fullWidth").Int(),
		FullHeight:       val.Get("fullHeight").Int(),
		ViewportWidth:    val.Get("viewportWidth").Int(),
		ViewportHeight:   val.Get("viewportHeight").Int(),
		ScrollX:          val.Get("scrollX").Int(),
		ScrollY:          val.Get("scrollY").Int(),
		DevicePixelRatio: val.Get("dpr").Num(),
	}, nil
}

// ScrollTo sets the document scroll offset.
func (v *PageView) ScrollTo(ctx context.Context, x, y int) error {
	_, err := v.page.Context(ctx).Eval(`(x, y) => { window.scrollTo(x, y); }`, x, y)
	if err != nil {
		return fmt.Errorf("scroll to (%d,%d): %w", x, y, err)
	}
	return nil
}

// hideJS hides fixed and sticky chrome plus this tool's own overlay, so
// they do not repeat in every tile. Prior inline visibility is stashed
// on the window for restoration.
const hideJS = `() => {
	if (window.__pagesnapHidden) return;
	const hidden = [];
	for (const el of document.querySelectorAll('body *')) {
		const pos = getComputedStyle(el).position;
		if (pos === 'fixed' || pos === 'sticky' || el.hasAttribute('data-pagesnap-overlay')) {
			hidden.push([el, el.style.visibility]);
			el.style.visibility = 'hidden';
		}
	}
	window.__pagesnapHidden = hidden;
}`

const restoreJS = `() => {
	const hidden = window.__pagesnapHidden;
	if (!hidden) return;
	for (const [el, vis] of hidden) {
		el.style.visibility = vis;
	}
	delete window.__pagesnapHidden;
}`

// HideOverlays hides fixed/sticky page chrome for the duration of a
// capture. Idempotent.
func (v *PageView) HideOverlays(ctx context.Context) error {
	_, err := v.page.Context(ctx).Eval(hideJS)
	if err != nil {
		return fmt.Errorf("hide overlays: %w", err)
	}
	return nil
}

// RestoreOverlays reverts HideOverlays. Idempotent; safe to call when
// nothing is hidden.
func (v *PageView) RestoreOverlays(ctx context.Context) error {
	_, err := v.page.Context(ctx).Eval(restoreJS)
	if err != nil {
		return fmt.Errorf("restore overlays: %w", err)
	}
	return nil
}

// Info returns the page URL and title.
func (v *PageView) Info(ctx context.Context) (protocol.PageInfo, error) {
	info, err := v.page.Context(ctx).Info()
	if err != nil {
		return protocol.PageInfo{}, fmt.Errorf("page info: %w", err)
	}
	return protocol.PageInfo{URL: info.URL, Title: info.Title}, nil
}

// CaptureViewport captures the currently visible viewport as PNG bytes.
// Exactly one viewport-sized region per call; never the full page.
func (v *PageView) CaptureViewport(ctx context.Context) ([]byte, error) {
	data, err := v.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture viewport: %w", err)
	}
	return data, nil
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/pagesnap/internal/capture"
	"github.com/nextlevelbuilder/pagesnap/internal/config"
	"github.com/nextlevelbuilder/pagesnap/internal/history"
	"github.com/nextlevelbuilder/pagesnap/internal/store"
	"github.com/nextlevelbuilder/pagesnap/internal/upload"
	"github.com/nextlevelbuilder/pagesnap/pkg/browser"
	"github.com/nextlevelbuilder/pagesnap/pkg/protocol"
)

func captureCmd() *cobra.Command {
	var (
		out         string
		doUpload    bool
		bucket      string
		prefix      string
		headless    bool
		timeoutSec  int
		inFlight    int
		showBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "capture <url>",
		Short: "Capture a full-page screenshot of a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if out != "" {
				cfg.OutputDir = config.ExpandHome(out)
			}
			if bucket != "" {
				cfg.S3.Bucket = bucket
			}
			if prefix != "" {
				cfg.S3.Prefix = prefix
			}
			if inFlight > 0 {
				cfg.MaxInFlight = inFlight
			}
			if timeoutSec <= 0 {
				timeoutSec = 300
			}

			dest := protocol.DestinationLocal
			if doUpload {
				dest = protocol.DestinationUpload
			}
			headless = headless && !showBrowser

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSec)*time.Second)
			defer cancel()

			outcome, err := runCapture(ctx, cfg, args[0], dest, headless)
			if err != nil {
				return err
			}

			if outcome.Status == protocol.StatusCompleted {
				fmt.Printf("Completed: %s", outcome.Artifact)
				if outcome.SkippedTiles > 0 {
					fmt.Printf(" (%d tile(s) skipped)", outcome.SkippedTiles)
				}
				fmt.Println()
				return nil
			}
			return fmt.Errorf("capture failed: %s", outcome.Reason)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory for local saves")
	cmd.Flags().BoolVar(&doUpload, "upload", false, "upload the stitched image instead of saving locally")
	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket for --upload")
	cmd.Flags().StringVar(&prefix, "prefix", "", "S3 key prefix for --upload")
	cmd.Flags().BoolVar(&headless, "headless", true, "run Chrome headless")
	cmd.Flags().BoolVar(&showBrowser, "show-browser", false, "show the browser window (overrides --headless)")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 300, "overall capture timeout in seconds")
	cmd.Flags().IntVar(&inFlight, "concurrency", 0, "max tile requests in flight")
	return cmd
}

// historyRecorder opens the session ledger. History is best effort: an
// unopenable ledger is logged and the capture proceeds without one.
func historyRecorder(path string) (capture.CoordinatorOption, func(), bool) {
	hist, err := history.Open(path)
	if err != nil {
		slog.Warn("history.open_failed", "path", path, "error", err)
		return nil, nil, false
	}
	return capture.WithRecorder(hist), func() { hist.Close() }, true
}

func runCapture(ctx context.Context, cfg *config.Config, url string, dest protocol.Destination, headless bool) (protocol.SessionOutcome, error) {
	mgr := browser.New(
		browser.WithHeadless(headless),
		browser.WithViewport(browser.Viewport{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height}),
	)
	if err := mgr.Start(ctx); err != nil {
		return protocol.SessionOutcome{}, err
	}
	defer mgr.Close()

	tab, err := mgr.OpenTab(ctx, url)
	if err != nil {
		return protocol.SessionOutcome{}, err
	}

	view, err := mgr.View(tab.TargetID)
	if err != nil {
		return protocol.SessionOutcome{}, err
	}

	opts := []capture.CoordinatorOption{
		capture.WithFilename(func(page protocol.PageInfo) string {
			return store.SuggestedFilename(page.URL, time.Now())
		}),
	}

	local, err := store.NewLocal(cfg.OutputDir)
	if err != nil {
		return protocol.SessionOutcome{}, err
	}
	opts = append(opts, capture.WithPersister(local))

	if dest == protocol.DestinationUpload {
		up, err := upload.NewS3(ctx, cfg.S3.Bucket, cfg.S3.Prefix)
		if err != nil {
			return protocol.SessionOutcome{}, err
		}
		opts = append(opts, capture.WithUploader(up))
	}

	if opt, closeHist, ok := historyRecorder(cfg.HistoryDB); ok {
		defer closeHist()
		opts = append(opts, opt)
	}

	coord := capture.NewCoordinator(
		capture.SourceFunc(func(targetID string) (capture.Capturer, error) {
			return mgr.View(targetID)
		}),
		capture.CoordinatorConfig{
			Quota:          cfg.QuotaRPS,
			CaptureTimeout: time.Duration(cfg.CaptureTimeoutMs) * time.Millisecond,
		},
		opts...,
	)

	agent := capture.NewAgent(view, coord, capture.AgentConfig{
		TileScale: cfg.TileScale,
		Retry: capture.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			SettleDelay: time.Duration(cfg.SettleMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		},
		MaxInFlight:  cfg.MaxInFlight,
		PrepareDelay: time.Duration(cfg.PrepareDelayMs) * time.Millisecond,
	})

	return agent.Run(ctx, tab.TargetID, dest)
}

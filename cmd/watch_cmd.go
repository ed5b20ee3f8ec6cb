package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/pagesnap/internal/config"
	"github.com/nextlevelbuilder/pagesnap/pkg/protocol"
)

func watchCmd() *cobra.Command {
	var (
		interval time.Duration
		headless bool
		doUpload bool
	)

	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Re-capture a URL on an interval until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dest := protocol.DestinationLocal
			if doUpload {
				dest = protocol.DestinationUpload
			}

			// Config edits take effect on the next capture, not mid-session.
			var mu sync.Mutex
			current := cfg
			if watcher, err := config.NewWatcher(resolveConfigPath()); err == nil {
				watcher.OnChange(func(next *config.Config) {
					mu.Lock()
					current = next
					mu.Unlock()
				})
				if err := watcher.Start(); err == nil {
					defer watcher.Stop()
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				mu.Lock()
				snapshot := current
				mu.Unlock()

				outcome, err := runCapture(ctx, snapshot, args[0], dest, headless)
				switch {
				case ctx.Err() != nil:
					return nil
				case err != nil:
					fmt.Fprintf(os.Stderr, "capture error: %s\n", err)
				case outcome.Status == protocol.StatusCompleted:
					fmt.Printf("%s  %s\n", time.Now().Format(time.DateTime), outcome.Artifact)
				default:
					fmt.Fprintf(os.Stderr, "capture failed: %s\n", outcome.Reason)
				}

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "time between captures")
	cmd.Flags().BoolVar(&headless, "headless", true, "run Chrome headless")
	cmd.Flags().BoolVar(&doUpload, "upload", false, "upload each capture instead of saving locally")
	return cmd
}

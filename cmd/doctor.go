package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/pagesnap/internal/config"
	"github.com/nextlevelbuilder/pagesnap/internal/history"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("pagesnap doctor")
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (not found, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	// Chrome
	fmt.Println()
	fmt.Print("  Chrome:   ")
	if path, found := launcher.LookPath(); found {
		fmt.Printf("%s (OK)\n", path)
	} else {
		fmt.Println("NOT FOUND (rod will download one on first run)")
	}

	// Output dir
	fmt.Println()
	fmt.Printf("  Output:   %s", cfg.OutputDir)
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fmt.Printf(" (NOT WRITABLE: %s)\n", err)
	} else {
		fmt.Println(" (OK)")
	}

	// History DB
	fmt.Printf("  History:  %s", cfg.HistoryDB)
	if hist, err := history.Open(cfg.HistoryDB); err != nil {
		fmt.Printf(" (ERROR: %s)\n", err)
	} else {
		hist.Close()
		fmt.Println(" (OK)")
	}

	// Upload
	fmt.Printf("  S3:       ")
	if cfg.S3.Bucket == "" {
		fmt.Println("not configured (local saves only)")
	} else {
		fmt.Printf("s3://%s/%s\n", cfg.S3.Bucket, cfg.S3.Prefix)
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

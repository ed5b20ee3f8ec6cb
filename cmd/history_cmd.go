package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/pagesnap/internal/history"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past capture sessions",
	}
	cmd.AddCommand(historyListCmd())
	return cmd
}

func historyListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent capture sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			hist, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer hist.Close()

			entries, err := hist.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No captures recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tSTATE\tGRID\tSKIPPED\tURL\tARTIFACT")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%dx%d\t%d\t%s\t%s\n",
					e.CreatedAt.Format(time.DateTime),
					e.State,
					e.Columns, e.Rows,
					e.Skipped,
					truncate(e.URL, 48),
					e.Artifact)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max entries to show")
	return cmd
}

// truncate shortens s to at most n characters, counting runes so a
// multibyte URL is never cut mid-sequence.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

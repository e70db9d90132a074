package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shilovk/yandex-cloud-tools/internal/journal"
)

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, err := setup(ctx)
			if err != nil {
				return err
			}
			if cfg.Journal.Backend == "" || cfg.Journal.Backend == "none" {
				fmt.Println("Journaling is not configured.")
				return nil
			}

			store, err := journal.Open(ctx, cfg.Journal.Backend, cfg.Journal.Path, cfg.Journal.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}

			fmt.Printf("%-28s %-8s %-21s %-10s %8s %8s %8s\n",
				"RUN", "KIND", "STARTED", "DURATION", "CREATED", "PRUNED", "ERRORS")
			fmt.Println(strings.Repeat("-", 100))
			for _, r := range runs {
				fmt.Printf("%-28s %-8s %-21s %-10s %8d %8d %8d\n",
					r.RunID, r.Kind,
					r.StartedAt.Format("2006-01-02 15:04:05"),
					r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
					r.Created, r.Pruned, r.Errors)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

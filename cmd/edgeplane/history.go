package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/edgeplane/pkg/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded builds",
	Long: `List the builds recorded in the data directory, newest first.

Examples:
  edgeplane history --data-dir ./edgeplane-data --limit 10`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of builds to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := storage.NewBoltStore(cfg.DataDir, cfg.History)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.ListBuilds(limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No builds recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GENERATION\tKIND\tVERSION\tRESOURCES\tERRORS\tDURATION\tCOMPLETED")
	for _, rec := range records {
		kind := rec.Kind
		if rec.Retried {
			kind += " (retried)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%dms\t%s\n",
			rec.Generation,
			kind,
			rec.Version,
			rec.Resources,
			len(rec.Errors),
			rec.DurationMS,
			rec.CompletedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return w.Flush()
}

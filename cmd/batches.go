package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List import batch history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		batches, err := st.ListBatches(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "batches")
		}
		if len(batches) == 0 {
			fmt.Fprintln(os.Stderr, "No batches found.")
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(batches)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tMODE\tFILE\tACTOR\tSTARTED\tINSERTED\tSKIPPED")
		for _, b := range batches {
			inserted, skipped := 0, 0
			if b.Summary != nil {
				inserted = b.Summary.SpotsInserted
				skipped = b.Summary.MonthsSkipped
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
				truncateID(b.ID), b.Mode, b.SourceFile, b.Actor,
				b.StartedAt.Format("2006-01-02 15:04"), inserted, skipped)
		}
		return w.Flush()
	},
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	batchesCmd.Flags().Int("limit", 50, "max batches to display")
	batchesCmd.Flags().Bool("json", false, "emit full batch records as JSON")
	rootCmd.AddCommand(batchesCmd)
}

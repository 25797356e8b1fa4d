package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit <batch-id>",
	Short: "Show the normalization audit trail for a batch",
	Long:  "Every entity resolution performed during an import leaves one audit row: the raw text, the resolved name, which method matched, and its confidence.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := st.ListAudit(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "audit")
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No audit rows for this batch.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "RAW\tRESOLVED\tKIND\tMETHOD\tCONF\tENTITY_ID")
		for _, a := range rows {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%s\n",
				a.RawText, a.ResolvedName, a.Kind, a.Method, a.Confidence, a.EntityID)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

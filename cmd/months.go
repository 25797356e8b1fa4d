package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

var closeMonthCmd = &cobra.Command{
	Use:   "close-month <month>",
	Short: "Permanently close a broadcast month (e.g. Jan-25)",
	Long:  "Closing is permanent: once closed, weekly and manual imports can no longer insert or delete spots for the month. There is no reopen operation.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		m, err := model.ParseBroadcastMonth(args[0])
		if err != nil {
			return err
		}

		actor, _ := cmd.Flags().GetString("actor")
		notes, _ := cmd.Flags().GetString("notes")
		if actor == "" {
			return eris.New("--actor is required when closing a month")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		err = st.CloseMonth(ctx, model.ClosedPeriod{
			Month:    m,
			ClosedBy: actor,
			ClosedAt: time.Now().UTC(),
			Notes:    notes,
		})
		if err != nil {
			return eris.Wrap(err, "close month")
		}

		zap.L().Info("month closed",
			zap.String("month", m.String()),
			zap.String("closed_by", actor),
		)
		return nil
	},
}

var closedMonthsCmd = &cobra.Command{
	Use:   "closed-months",
	Short: "List closed broadcast months",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		closed, err := st.ClosedMonths(ctx)
		if err != nil {
			return eris.Wrap(err, "closed months")
		}
		if len(closed) == 0 {
			fmt.Fprintln(os.Stderr, "No closed months.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "MONTH\tCLOSED_BY\tCLOSED_AT\tNOTES")
		for _, cp := range closed {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cp.Month, cp.ClosedBy, cp.ClosedAt.Format("2006-01-02 15:04"), cp.Notes)
		}
		return w.Flush()
	},
}

func init() {
	closeMonthCmd.Flags().String("actor", "", "operator closing the month (required)")
	closeMonthCmd.Flags().String("notes", "", "optional close note")
	rootCmd.AddCommand(closeMonthCmd)
	rootCmd.AddCommand(closedMonthsCmd)
}

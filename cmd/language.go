package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/language"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/store"
)

var languageCmd = &cobra.Command{
	Use:   "language",
	Short: "Inspect and correct language assignments",
}

var languageReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List assignments flagged for review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		month, _ := cmd.Flags().GetString("month")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		assignments, err := st.ListAssignments(ctx, store.AssignmentFilter{
			RequireReview: true,
			Month:         month,
			Limit:         limit,
		})
		if err != nil {
			return err
		}
		if len(assignments) == 0 {
			fmt.Fprintln(os.Stderr, "Nothing flagged for review.")
			return nil
		}

		formatAssignments(assignments)
		return nil
	},
}

var languageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List language assignments",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		status, _ := cmd.Flags().GetString("status")
		month, _ := cmd.Flags().GetString("month")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		assignments, err := st.ListAssignments(ctx, store.AssignmentFilter{
			Status: model.AssignmentStatus(status),
			Month:  month,
			Limit:  limit,
		})
		if err != nil {
			return err
		}
		if len(assignments) == 0 {
			fmt.Fprintln(os.Stderr, "No assignments found.")
			return nil
		}

		formatAssignments(assignments)
		return nil
	},
}

var languageAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Re-run the categorization engine over stored spots",
	Long:  "Recomputes the language assignment for every spot in the given month (or every month when none is given). The engine is deterministic, so re-running over unchanged spots rewrites identical rows.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		monthKey, _ := cmd.Flags().GetString("month")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var targets []model.BroadcastMonth
		if monthKey != "" {
			m, err := model.ParseBroadcastMonth(monthKey)
			if err != nil {
				return err
			}
			targets = []model.BroadcastMonth{m}
		} else {
			targets, err = st.SpotMonths(ctx)
			if err != nil {
				return err
			}
		}

		engine := language.NewEngine(language.MustLoadCodes(), language.DefaultSets())
		now := time.Now().UTC()
		assigned, flagged := 0, 0
		for _, m := range targets {
			spots, err := st.ListSpots(ctx, m)
			if err != nil {
				return err
			}
			for _, sp := range spots {
				a := engine.Assign(sp.ID, sp.RevenueType, sp.SpotType, sp.LanguageCode, now)
				if err := st.UpsertLanguageAssignment(ctx, a); err != nil {
					return err
				}
				assigned++
				if a.RequiresReview {
					flagged++
				}
			}
		}

		zap.L().Info("language assignments recomputed",
			zap.Int("months", len(targets)),
			zap.Int("assigned", assigned),
			zap.Int("review_flagged", flagged),
		)
		fmt.Printf("recomputed %d assignments across %d months (%d flagged for review)\n",
			assigned, len(targets), flagged)
		return nil
	},
}

func formatAssignments(assignments []model.LanguageAssignment) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SPOT\tCODE\tNAME\tCATEGORY\tSTATUS\tCONF\tMETHOD\tREVIEW")
	for _, a := range assignments {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1f\t%s\t%t\n",
			a.SpotID, a.LanguageCode, a.LanguageName, a.Category, a.Status,
			a.Confidence, a.Method, a.RequiresReview)
	}
	_ = w.Flush()
}

func init() {
	languageAssignCmd.Flags().String("month", "", "limit to one broadcast month (e.g. Jan-25)")
	languageReviewCmd.Flags().String("month", "", "filter by broadcast month (e.g. Jan-25)")
	languageReviewCmd.Flags().Int("limit", 200, "max rows to display")
	languageListCmd.Flags().String("status", "", "filter by status (determined, undetermined, default, invalid)")
	languageListCmd.Flags().String("month", "", "filter by broadcast month (e.g. Jan-25)")
	languageListCmd.Flags().Int("limit", 200, "max rows to display")
	languageCmd.AddCommand(languageReviewCmd)
	languageCmd.AddCommand(languageListCmd)
	languageCmd.AddCommand(languageAssignCmd)
	rootCmd.AddCommand(languageCmd)
}

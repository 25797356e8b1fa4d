package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

var canonicalCmd = &cobra.Command{
	Use:   "canonical",
	Short: "Manage the cleaned-name to canonical-name map",
	Long:  "The canonical map is consulted after alias bindings: when a cleaned extract string matches an entry, the spot is attributed to the canonical display name.",
}

var canonicalSetCmd = &cobra.Command{
	Use:   "set <alias> <canonical-name>",
	Short: "Add or update a canonical map entry (alias is stored in cleaned lookup form)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := entityKindFlag(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		err = st.UpsertCanonicalEntry(ctx, model.CanonicalMapEntry{
			Kind:      kind,
			Alias:     args[0],
			Canonical: args[1],
		})
		if err != nil {
			return err
		}

		zap.L().Info("canonical entry set",
			zap.String("alias", args[0]),
			zap.String("canonical", args[1]),
			zap.String("kind", string(kind)),
		)
		return nil
	},
}

var canonicalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List canonical map entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		kind, err := entityKindFlag(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListCanonicalEntries(ctx, kind)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No canonical entries found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ALIAS\tCANONICAL\tKIND\tUPDATED")
		for _, e := range entries {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.Alias, e.Canonical, e.Kind, e.UpdatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

func init() {
	canonicalSetCmd.Flags().String("kind", "customer", "entity kind: customer or agency")
	canonicalListCmd.Flags().String("kind", "customer", "entity kind: customer or agency")
	canonicalCmd.AddCommand(canonicalSetCmd)
	canonicalCmd.AddCommand(canonicalListCmd)
	rootCmd.AddCommand(canonicalCmd)
}

package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

var aliasCmd = &cobra.Command{
	Use:   "alias",
	Short: "Manage raw-string to entity alias bindings",
	Long:  "An alias binds one exact raw extract string to a canonical entity. Alias matches win over every other resolution method, so a binding is the strongest correction an operator can make.",
}

var aliasAddCmd = &cobra.Command{
	Use:   "add <raw-string> <entity-id>",
	Short: "Bind a raw string to an entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := entityKindFlag(cmd)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		actor, _ := cmd.Flags().GetString("actor")
		notes, _ := cmd.Flags().GetString("notes")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		err = st.BindAlias(ctx, model.EntityAlias{
			Alias:      args[0],
			Kind:       kind,
			EntityID:   args[1],
			Confidence: 1.0,
			CreatedBy:  actor,
			Notes:      notes,
			Active:     true,
		}, force)

		var conflict *model.AliasConflictError
		if errors.As(err, &conflict) {
			fmt.Fprintf(os.Stderr, "alias %q is already bound to entity %s; rerun with --force to rebind\n",
				conflict.Alias, conflict.ExistingEntityID)
			return err
		}
		if err != nil {
			return err
		}

		zap.L().Info("alias bound",
			zap.String("alias", args[0]),
			zap.String("kind", string(kind)),
			zap.String("entity_id", args[1]),
			zap.Bool("force", force),
		)
		return nil
	},
}

var aliasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alias bindings",
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

		aliases, err := st.ListAliases(ctx, kind)
		if err != nil {
			return err
		}
		if len(aliases) == 0 {
			fmt.Fprintln(os.Stderr, "No aliases found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ALIAS\tKIND\tENTITY_ID\tACTIVE\tCREATED_BY")
		for _, a := range aliases {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
				a.Alias, a.Kind, a.EntityID, a.Active, a.CreatedBy)
		}
		return w.Flush()
	},
}

func init() {
	aliasAddCmd.Flags().String("kind", "customer", "entity kind: customer or agency")
	aliasAddCmd.Flags().Bool("force", false, "rebind the alias even if it points at a different entity")
	aliasAddCmd.Flags().String("actor", "", "operator recorded on the binding")
	aliasAddCmd.Flags().String("notes", "", "optional binding note")
	aliasListCmd.Flags().String("kind", "customer", "entity kind: customer or agency")
	aliasCmd.AddCommand(aliasAddCmd)
	aliasCmd.AddCommand(aliasListCmd)
	rootCmd.AddCommand(aliasCmd)
}
